// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "Sentinel")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "sentinel.log")
	viper.SetDefault("main.log.maxsizemb", 10)
	viper.SetDefault("main.log.maxbackups", 3)
	viper.SetDefault("main.log.maxagedays", 28)

	viper.SetDefault("ingest.host", "localhost")
	viper.SetDefault("ingest.port", 8765)
	viper.SetDefault("ingest.queuesize", 1024)
	viper.SetDefault("ingest.overflowpolicy", OverflowBlock)
	viper.SetDefault("ingest.reconnectmin", 1*time.Second)
	viper.SetDefault("ingest.reconnectmax", 30*time.Second)

	viper.SetDefault("catalog.productspath", "data/input/products_list.csv")
	viper.SetDefault("catalog.customerspath", "data/input/customer_data.csv")

	viper.SetDefault("correlator.window.policy", WindowPolicyTumbling)
	viper.SetDefault("correlator.window.duration", 30*time.Second)
	viper.SetDefault("correlator.window.grace", 5*time.Second)

	viper.SetDefault("detector.mindwell", 0*time.Second)
	viper.SetDefault("detector.priceratio", 0.5)
	viper.SetDefault("detector.weighttolerancegrams", 50.0)
	viper.SetDefault("detector.queuethreshold", 4)
	viper.SetDefault("detector.dwellthresholdseconds", 300.0)
	viper.SetDefault("detector.inventoryvariancepct", 10.0)
	viper.SetDefault("detector.staffingratio", 0.7)
	viper.SetDefault("detector.mininventoryforvariance", 10)

	viper.SetDefault("output.file.enabled", true)
	viper.SetDefault("output.file.path", "events.jsonl")
	viper.SetDefault("output.sqlite.enabled", false)
	viper.SetDefault("output.sqlite.path", "sentinel.db")
	viper.SetDefault("output.mqtt.enabled", false)
	viper.SetDefault("output.mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("output.mqtt.topic", "sentinel/events")
	viper.SetDefault("output.mqtt.username", "")
	viper.SetDefault("output.mqtt.password", "")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "localhost:9090")
}
