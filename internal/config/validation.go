package config

import "fmt"

func validate(c *Config) error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0")
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be > 0")
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("settle delay must be >= 0")
	}
	if c.ImageWorkers <= 0 {
		return fmt.Errorf("image workers must be > 0")
	}
	return nil
}
