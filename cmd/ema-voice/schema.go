package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/koscakluka/ema-voice/internal/config"
)

type schemaCommand struct{}

func (c *schemaCommand) Execute(_ []string) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(config.Schema()); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return nil
}
