package config

import "testing"

func TestValidate(t *testing.T) {
	base := Config{
		Bind:      "0.0.0.0",
		Port:      8080,
		Store:     StoreMongo,
		MongoURI:  "mongodb://localhost:27017",
		JWTSecret: "secret",
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"memory store without mongo", func(c *Config) { c.Store = StoreMemory; c.MongoURI = "" }, false},
		{"port too low", func(c *Config) { c.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Port = 70000 }, true},
		{"unknown store", func(c *Config) { c.Store = "dynamo" }, true},
		{"mongo store without uri", func(c *Config) { c.MongoURI = "" }, true},
		{"empty jwt secret", func(c *Config) { c.JWTSecret = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
