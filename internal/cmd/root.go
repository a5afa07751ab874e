package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "zonat",
	Short: "Delivery area maps from Google My Maps",
	Long: `zonat loads delivery areas drawn in Google My Maps and serves them as an
interactive map: colored zones with a legend, a mask dimming everything outside
the service area, address search and a cached base map.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	flags.Bool("verbose", false, "Enable verbose logging")
	flags.String("log-format", "text", "Log format (text, json)")

	flags.String("mid", "", "Google My Maps map id")
	flags.String("lid", "", "Google My Maps layer id (optional)")
	flags.String("colors", "", `Zone colors by position, dash separated (e.g. "ff0000-0f0-blue")`)
	flags.String("color-strategy", "properties", "Zone color source (properties, palette)")
	flags.Float64("viewport-pad", 0, "Pan limit margin as a fraction of the zone bounds (default 0.25)")
	flags.Float64("mask-pad", 0, "Mask outer ring margin as a fraction of the zone bounds (default 1.0)")

	flags.String("tile-style", "", "tiles.hel.ninja style (default hel-osm-bright)")
	flags.String("tile-language", "", "Base map label language (default fi)")
	flags.String("tile-url", "", "Base map URL template, overrides --tile-style and --tile-language")
	flags.String("cache", "zonat-tiles.mbtiles", "MBTiles file caching base map tiles")
	flags.Bool("retina", false, "Cache @2x base map tiles instead of 1x")

	flags.String("search-url", "", "Pelias geocoding base URL (default Digitransit)")
	flags.String("search-api-key", "", "Geocoding API key")
	flags.String("search-lang", "", "Preferred geocoding result language")
	flags.Duration("search-cache-ttl", time.Hour, "Geocoding result cache lifetime")

	flags.String("redis-addr", "", "Redis address (host:port) caching geocoding results; empty disables the cache")
	flags.String("redis-password", "", "Redis password")
	flags.Int("redis-db", 0, "Redis database")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"verbose", "verbose"},
		{"log_format", "log-format"},
		{"map.mid", "mid"},
		{"map.lid", "lid"},
		{"map.colors", "colors"},
		{"map.color_strategy", "color-strategy"},
		{"map.viewport_pad", "viewport-pad"},
		{"map.mask_pad", "mask-pad"},
		{"tiles.style", "tile-style"},
		{"tiles.language", "tile-language"},
		{"tiles.url", "tile-url"},
		{"tiles.cache", "cache"},
		{"tiles.retina", "retina"},
		{"search.url", "search-url"},
		{"search.api_key", "search-api-key"},
		{"search.lang", "search-lang"},
		{"search.cache_ttl", "search-cache-ttl"},
		{"redis.addr", "redis-addr"},
		{"redis.password", "redis-password"},
		{"redis.db", "redis-db"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, flags.Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func initConfig() {
	// A missing .env is the normal case.
	_ = godotenv.Load(".env")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// map.mid is read from ZONAT_MAP_MID
	viper.SetEnvPrefix("ZONAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
