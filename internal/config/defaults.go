package config

import "github.com/spf13/viper"

// setDefaults seeds every key so a bare start works out of the box.
func setDefaults(v *viper.Viper) {
	v.SetDefault("chain.governance", "governance")
	v.SetDefault("chain.treasury", "treasury")
	v.SetDefault("chain.block_seconds", 5)

	v.SetDefault("fees.protocol_bps", 5)
	v.SetDefault("fees.lp_bps", 25)
	v.SetDefault("fees.flash_loan_bps", 8)
	v.SetDefault("fees.farm_claim_bps", 5)
	v.SetDefault("fees.minimum_share_burn", 1000)

	v.SetDefault("oracle.staleness_threshold", 60)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)

	v.SetDefault("rpc.listen", "127.0.0.1:7410")

	v.SetDefault("events.driver", "sqlite")
	v.SetDefault("events.dsn", "godexd-events.db")
	v.SetDefault("events.window", 1024)

	v.SetDefault("snapshot.dir", "")
	v.SetDefault("snapshot.interval_blocks", 0)
}
