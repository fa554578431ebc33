package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"

	"github.com/0xmhha/klaviyo-report/pkg/config"
)

// configCommand handles configuration management subcommands.
type configCommand struct {
	configPath string
	stdout     io.Writer

	// stdin answers the reset confirmation prompt. Default: os.Stdin.
	stdin io.Reader
}

// Execute runs the config command with given arguments.
func (c *configCommand) Execute(args []string) error {
	if len(args) == 0 {
		return c.showHelp()
	}

	subcommand := args[0]
	subargs := args[1:]

	switch subcommand {
	case "show":
		return c.runShow(subargs)
	case "path":
		return c.runPath()
	case "reset":
		return c.runReset(subargs)
	case "help":
		return c.showHelp()
	default:
		return fmt.Errorf("unknown config subcommand: %s", subcommand)
	}
}

// runShow displays the current configuration with the API key masked.
func (c *configCommand) runShow(args []string) error {
	fs := flag.NewFlagSet("config show", flag.ContinueOnError)
	format := fs.String("format", "yaml", "output format (yaml, json)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.NewLoader(c.configPath).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg = cfg.Redacted()

	switch *format {
	case "json":
		return c.showJSON(cfg)
	default:
		return c.showYAML(cfg)
	}
}

// showYAML displays configuration in YAML format.
func (c *configCommand) showYAML(cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Fprintln(c.stdout, "# Current Configuration")
	fmt.Fprintln(c.stdout, "# Source:", c.getConfigSource())
	fmt.Fprintln(c.stdout)
	_, err = c.stdout.Write(data)
	return err
}

// showJSON displays configuration in JSON format.
func (c *configCommand) showJSON(cfg *config.Config) error {
	data, err := sonic.ConfigStd.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	_, err = fmt.Fprintln(c.stdout, string(data))
	return err
}

// searchPaths lists the configuration files Load looks for, in order.
func (c *configCommand) searchPaths() []string {
	paths := []string{config.LocalConfigFile, config.DefaultPath()}
	if c.configPath != "" {
		paths = append([]string{c.configPath}, paths...)
	}
	return paths
}

// runPath shows the configuration file paths.
func (c *configCommand) runPath() error {
	fmt.Fprintln(c.stdout, "Configuration file search paths (in order of precedence):")
	fmt.Fprintln(c.stdout)

	for i, p := range c.searchPaths() {
		exists := "not found"
		if _, err := os.Stat(p); err == nil {
			exists = "found"
		}
		fmt.Fprintf(c.stdout, "  %d. %s [%s]\n", i+1, p, exists)
	}

	fmt.Fprintln(c.stdout)
	_, err := fmt.Fprintln(c.stdout, "Active configuration:", c.getConfigSource())
	return err
}

// runReset resets configuration to defaults.
func (c *configCommand) runReset(args []string) error {
	fs := flag.NewFlagSet("config reset", flag.ContinueOnError)
	force := fs.Bool("force", false, "skip confirmation prompt")
	output := fs.String("output", "", "output path for config file (default: ~/.config/klaviyo-report/config.yaml)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	outputPath := *output
	if outputPath == "" {
		outputPath = config.DefaultPath()
	}

	if _, err := os.Stat(outputPath); err == nil && !*force {
		fmt.Fprintf(c.stdout, "Configuration file already exists at: %s\n", outputPath)
		fmt.Fprint(c.stdout, "Overwrite? [y/N]: ")

		if !c.confirm() {
			fmt.Fprintln(c.stdout, "Reset cancelled.")
			return nil
		}
	}

	if err := config.Save(config.Default(), outputPath); err != nil {
		return err
	}

	_, err := fmt.Fprintf(c.stdout, "Configuration reset to defaults at: %s\n", outputPath)
	return err
}

// confirm reads a yes/no answer. Anything but y or yes is no.
func (c *configCommand) confirm() bool {
	in := c.stdin
	if in == nil {
		in = os.Stdin
	}

	response, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && response == "" {
		return false
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

// getConfigSource returns the path of the active configuration file.
func (c *configCommand) getConfigSource() string {
	if p := config.NewLoader(c.configPath).Path(); p != "" {
		return p
	}
	return "defaults (no config file found)"
}

// showHelp displays help for config command.
func (c *configCommand) showHelp() error {
	help := `Config - Configuration management

Usage:
  klaviyo-report config <subcommand> [flags]

Subcommands:
  show      Display current configuration (API key masked)
  path      Show configuration file paths
  reset     Reset configuration to defaults

Show Flags:
  -format   Output format (yaml, json) (default: yaml)

Reset Flags:
  -force    Skip confirmation prompt
  -output   Output path for config file

Environment:
  KLAVIYO_API_KEY            API key
  KLAVIYO_REPORT_TIMEZONE    Report timezone
  KLAVIYO_REPORT_CACHE_DB    Cache database path
  KLAVIYO_REPORT_LOG_LEVEL   Log level
`
	_, err := fmt.Fprint(c.stdout, help)
	return err
}
