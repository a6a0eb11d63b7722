package config_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/proxykit/reverseproxy/config"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

func validConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Address:     ":8080",
			Environment: config.EnvDev,
		},
		Admin: config.AdminConfig{
			Address: ":8081",
		},
		HealthCheck: config.HealthCheckConfig{
			Interval: "10s",
		},
		Strategy: config.StrategyConfig{
			Type: config.StrategyRoundRobin,
		},
		Sessions: config.SessionsConfig{
			Enabled: false,
			TTL:     "30m",
		},
		Breaker: config.BreakerConfig{
			Threshold:    5,
			ResetTimeout: "30s",
		},
		Backends: []config.BackendConfig{
			{URL: "http://localhost:8082", Weight: 1},
			{URL: "http://localhost:8083", Weight: 1},
			{URL: "http://localhost:8084", Weight: 1},
		},
		Logging: config.LoggingConfig{
			Level: "info",
		},
	}
}

var _ = Describe("Validate", func() {
	It("should accept a complete configuration", func() {
		Expect(validConfig().Validate()).To(Succeed())
	})

	Context("server section", func() {
		It("should reject an unknown environment", func() {
			cfg := validConfig()
			cfg.Server.Environment = "testing"
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject an address without a port", func() {
			cfg := validConfig()
			cfg.Server.Address = "localhost"
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should accept a host:port address", func() {
			cfg := validConfig()
			cfg.Server.Address = "0.0.0.0:9090"
			Expect(cfg.Validate()).To(Succeed())
		})
	})

	Context("admin section", func() {
		It("should reject a malformed admin address", func() {
			cfg := validConfig()
			cfg.Admin.Address = "not-an-address"
			Expect(cfg.Validate()).NotTo(Succeed())
		})
	})

	Context("health check section", func() {
		It("should reject an unparseable interval", func() {
			cfg := validConfig()
			cfg.HealthCheck.Interval = "soon"
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		DescribeTable("interval formats",
			func(interval string, want time.Duration) {
				cfg := validConfig()
				cfg.HealthCheck.Interval = interval
				Expect(cfg.Validate()).To(Succeed())
				Expect(cfg.HealthCheckInterval()).To(Equal(want))
			},
			Entry("seconds", "2s", 2*time.Second),
			Entry("milliseconds", "500ms", 500*time.Millisecond),
			Entry("minutes", "1m", time.Minute),
		)
	})

	Context("strategy section", func() {
		DescribeTable("accepted strategies",
			func(name string) {
				cfg := validConfig()
				cfg.Strategy.Type = name
				Expect(cfg.Validate()).To(Succeed())
			},
			Entry("round-robin", config.StrategyRoundRobin),
			Entry("weighted-round-robin", config.StrategyWeightedRoundRobin),
			Entry("random", config.StrategyRandom),
			Entry("least-conn", config.StrategyLeastConn),
		)

		It("should reject unknown strategies", func() {
			cfg := validConfig()
			cfg.Strategy.Type = "fastest-first"
			Expect(cfg.Validate()).NotTo(Succeed())
		})
	})

	Context("sessions section", func() {
		It("should require a TTL only when enabled", func() {
			cfg := validConfig()
			cfg.Sessions = config.SessionsConfig{Enabled: false, TTL: ""}
			Expect(cfg.Validate()).To(Succeed())

			cfg.Sessions = config.SessionsConfig{Enabled: true, TTL: ""}
			Expect(cfg.Validate()).NotTo(Succeed())

			cfg.Sessions = config.SessionsConfig{Enabled: true, TTL: "15m"}
			Expect(cfg.Validate()).To(Succeed())
			Expect(cfg.SessionTTL()).To(Equal(15 * time.Minute))
		})
	})

	Context("breaker section", func() {
		It("should reject a zero threshold", func() {
			cfg := validConfig()
			cfg.Breaker.Threshold = 0
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject an invalid reset timeout", func() {
			cfg := validConfig()
			cfg.Breaker.ResetTimeout = "later"
			Expect(cfg.Validate()).NotTo(Succeed())
		})
	})

	Context("backends section", func() {
		It("should require at least one backend", func() {
			cfg := validConfig()
			cfg.Backends = nil
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject an empty URL", func() {
			cfg := validConfig()
			cfg.Backends[0].URL = ""
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject non-http schemes", func() {
			cfg := validConfig()
			cfg.Backends[0].URL = "ftp://localhost:8082"
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject URLs without a host", func() {
			cfg := validConfig()
			cfg.Backends[0].URL = "http://"
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject weights below 1", func() {
			cfg := validConfig()
			cfg.Backends[0].Weight = 0
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should accept https backends", func() {
			cfg := validConfig()
			cfg.Backends[0].URL = "https://api.example.com"
			Expect(cfg.Validate()).To(Succeed())
		})
	})

	Context("logging section", func() {
		It("should reject unknown levels", func() {
			cfg := validConfig()
			cfg.Logging.Level = "verbose"
			Expect(cfg.Validate()).NotTo(Succeed())
		})
	})
})
