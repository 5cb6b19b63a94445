// Package catalog loads and serves the read-only reference data: the
// product catalog and the customer registry. Both are loaded once at
// startup and never mutated by the correlator or the detector.
package catalog

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/projectsentinel/sentinel-go/internal/errors"
	"github.com/projectsentinel/sentinel-go/internal/logging"
)

// Product is the reference truth for a SKU.
type Product struct {
	SKU                 string
	Name                string
	ExpectedQuantity    int
	EPCRange            string
	Barcode             string
	ExpectedWeightGrams float64
	CatalogPrice        float64
}

// Customer is a reference identity, used for enrichment only.
type Customer struct {
	ID          string
	Name        string
	LoyaltyTier string
}

// DefaultLoyaltyTier is assumed when the registry carries no tier column.
const DefaultLoyaltyTier = "standard"

// Catalog holds the loaded reference tables, keyed by SKU and customer id.
type Catalog struct {
	products  map[string]Product
	customers map[string]Customer
	logger    *slog.Logger
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		products:  make(map[string]Product),
		customers: make(map[string]Customer),
		logger:    logging.ForService("catalog"),
	}
}

// Load reads both reference files. A missing customers file is tolerated
// (enrichment only); a missing products file is an error because three
// rules depend on catalog expectations.
func Load(productsPath, customersPath string) (*Catalog, error) {
	c := New()

	if err := c.loadProducts(productsPath); err != nil {
		return nil, err
	}

	if err := c.loadCustomers(customersPath); err != nil {
		c.logger.Warn("customer registry unavailable, customer enrichment disabled",
			"path", customersPath, "error", err)
	}

	c.logger.Info("reference data loaded",
		"products", len(c.products), "customers", len(c.customers))
	return c, nil
}

// loadProducts reads products_list.csv. Expected header:
// SKU,product_name,quantity,EPC_range,barcode,weight,price
func (c *Catalog) loadProducts(path string) error {
	rows, header, err := readCSV(path)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryCatalog).
			Component("catalog").
			Context("path", path).
			Build()
	}

	col := columnIndex(header)
	for _, row := range rows {
		sku := field(row, col, "sku")
		if sku == "" {
			continue
		}
		quantity, _ := strconv.Atoi(field(row, col, "quantity"))
		weight, _ := strconv.ParseFloat(field(row, col, "weight"), 64)
		price, _ := strconv.ParseFloat(field(row, col, "price"), 64)

		c.products[sku] = Product{
			SKU:                 sku,
			Name:                field(row, col, "product_name"),
			ExpectedQuantity:    quantity,
			EPCRange:            field(row, col, "epc_range"),
			Barcode:             field(row, col, "barcode"),
			ExpectedWeightGrams: weight,
			CatalogPrice:        price,
		}
	}

	if len(c.products) == 0 {
		return errors.Newf("no products loaded from %s", path).
			Category(errors.CategoryCatalog).
			Component("catalog").
			Build()
	}
	return nil
}

// loadCustomers reads customer_data.csv. Expected header:
// Customer_ID,Name,Age,Address,TP with an optional Loyalty_tier column.
func (c *Catalog) loadCustomers(path string) error {
	rows, header, err := readCSV(path)
	if err != nil {
		return err
	}

	col := columnIndex(header)
	for _, row := range rows {
		id := field(row, col, "customer_id")
		if id == "" {
			continue
		}
		tier := field(row, col, "loyalty_tier")
		if tier == "" {
			tier = DefaultLoyaltyTier
		}
		c.customers[id] = Customer{
			ID:          id,
			Name:        field(row, col, "name"),
			LoyaltyTier: tier,
		}
	}
	return nil
}

// Product looks up a catalog entry by SKU.
func (c *Catalog) Product(sku string) (Product, bool) {
	p, ok := c.products[sku]
	return p, ok
}

// Customer looks up a registry entry by customer id.
func (c *Catalog) Customer(id string) (Customer, bool) {
	cu, ok := c.customers[id]
	return cu, ok
}

// ExpectedWeight returns the expected weight in grams for a SKU.
func (c *Catalog) ExpectedWeight(sku string) (float64, bool) {
	p, ok := c.products[sku]
	if !ok {
		return 0, false
	}
	return p.ExpectedWeightGrams, true
}

// ExpectedPrice returns the catalog price for a SKU.
func (c *Catalog) ExpectedPrice(sku string) (float64, bool) {
	p, ok := c.products[sku]
	if !ok {
		return 0, false
	}
	return p.CatalogPrice, true
}

// Products returns the number of loaded products.
func (c *Catalog) Products() int { return len(c.products) }

// Customers returns the number of loaded customers.
func (c *Catalog) Customers() int { return len(c.customers) }

// AddProduct inserts a product entry. Intended for tests.
func (c *Catalog) AddProduct(p Product) { c.products[p.SKU] = p }

// AddCustomer inserts a customer entry. Intended for tests.
func (c *Catalog) AddCustomer(cu Customer) { c.customers[cu.ID] = cu }

// readCSV reads a headered CSV file and returns its data rows and header.
func readCSV(path string) (rows [][]string, header []string, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading CSV file %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("empty CSV file %s", path)
	}
	return records[1:], records[0], nil
}

// columnIndex maps normalized header names to column positions.
func columnIndex(header []string) map[string]int {
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return col
}

// field returns the named column of a row, empty when absent.
func field(row []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
