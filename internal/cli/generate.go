package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/helloweilei/ropenapi/internal/emitter/tsemitter"
	"github.com/helloweilei/ropenapi/internal/spec"
)

// envPrefix namespaces environment overrides, e.g. ROPENAPI_OUT.
const envPrefix = "ropenapi"

// GenerateConfig captures all inputs that influence the generate command after
// merging defaults, config file values, environment and CLI overrides.
type GenerateConfig struct {
	Input         string
	Out           string
	Tags          []string
	ExcludeTags   []string `split_words:"true"`
	RequestModule string   `split_words:"true"`
	APIPrefix     string   `split_words:"true"`
	Validate      bool
	Strict        bool
	DryRun        bool `split_words:"true"`
	Force         bool
	Verbose       bool
	ConfigPath    string `ignored:"true"`

	stdout io.Writer
	stderr io.Writer
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{
		Out:           "services",
		RequestModule: tsemitter.DefaultRequestModule,
	}
}

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate TypeScript services from an OpenAPI/Swagger document",
		Long: "Generate one service module and one types module per tag from an OpenAPI 3 or Swagger 2.0 document. " +
			"Options can be provided via flags, ROPENAPI_* environment variables, config files, or defaults.",
		Example: strings.TrimSpace(`  ropenapi generate --input openapi.json --out src/services
  ropenapi generate --input https://petstore.swagger.io/v2/swagger.json --tags pet,store
  ropenapi --config ropenapi.yaml generate --force --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringP("input", "i", "", "Path or URL to the Swagger/OpenAPI document")
	flags.StringP("out", "o", "", "Output root directory (default \"services\")")
	flags.StringSlice("tags", nil, "Only generate services for these tags (case-sensitive)")
	flags.StringSlice("exclude-tags", nil, "Skip services for these tags")
	flags.String("request-module", "", "Module the request helper is imported from (default \""+tsemitter.DefaultRequestModule+"\")")
	flags.String("api-prefix", "", "Prefix prepended to every request url")
	flags.Bool("validate", false, "Lint the document with kin-openapi and log findings")
	flags.Bool("strict", false, "Fail when linting reports findings (implies --validate)")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite existing generated files")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()
	cfg.stdout = cmd.OutOrStdout()
	cfg.stderr = cmd.ErrOrStderr()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, newUsageError(fmt.Sprintf("environment: %v", err))
	}

	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{"input", &cfg.Input},
		{"out", &cfg.Out},
		{"request-module", &cfg.RequestModule},
		{"api-prefix", &cfg.APIPrefix},
	}
	for _, s := range strs {
		if !flags.Changed(s.name) {
			continue
		}
		value, err := flags.GetString(s.name)
		if err != nil {
			return err
		}
		*s.dst = strings.TrimSpace(value)
	}

	slices := []struct {
		name string
		dst  *[]string
	}{
		{"tags", &cfg.Tags},
		{"exclude-tags", &cfg.ExcludeTags},
	}
	for _, s := range slices {
		if !flags.Changed(s.name) {
			continue
		}
		value, err := flags.GetStringSlice(s.name)
		if err != nil {
			return err
		}
		*s.dst = sanitizeTags(value)
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"validate", &cfg.Validate},
		{"strict", &cfg.Strict},
		{"dry-run", &cfg.DryRun},
		{"force", &cfg.Force},
		{"verbose", &cfg.Verbose},
	}
	for _, b := range bools {
		if !flags.Changed(b.name) {
			continue
		}
		value, err := flags.GetBool(b.name)
		if err != nil {
			return err
		}
		*b.dst = value
	}

	return nil
}

func (c *GenerateConfig) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.Out = strings.TrimSpace(c.Out)
	if c.Out == "" {
		c.Out = "services"
	}
	c.RequestModule = strings.TrimSpace(c.RequestModule)
	if c.RequestModule == "" {
		c.RequestModule = tsemitter.DefaultRequestModule
	}
	c.APIPrefix = strings.TrimSpace(c.APIPrefix)
	c.Tags = sanitizeTags(c.Tags)
	c.ExcludeTags = sanitizeTags(c.ExcludeTags)
	if c.Strict {
		c.Validate = true
	}
}

func (c *GenerateConfig) validate() error {
	if c.Input == "" {
		return newUsageError("generate: --input is required (set via flag, ROPENAPI_INPUT or config file)")
	}

	overlap := intersect(c.Tags, c.ExcludeTags)
	if len(overlap) > 0 {
		return newUsageError(fmt.Sprintf("generate: --tags and --exclude-tags overlap: %s", strings.Join(overlap, ", ")))
	}

	return nil
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	stdout, stderr := cfg.stdout, cfg.stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := newLogger(stderr, cfg.Verbose).With("component", "generate")

	// 1) Read the document (file or http/https URL)
	raw, err := spec.ReadSource(ctx, cfg.Input)
	if err != nil {
		return mapSpecError(err, cfg.Input)
	}
	logger.Debug("read input", "input", cfg.Input, "bytes", len(raw))

	// 2) Optional lint pass; never changes what gets generated
	if cfg.Validate {
		findings, err := spec.Validate(ctx, raw)
		if err != nil {
			return mapSpecError(err, cfg.Input)
		}
		for _, f := range findings {
			logger.Warn(f.Message, "pointer", f.Pointer)
		}
		if cfg.Strict && len(findings) > 0 {
			return mapSpecError(&spec.SpecError{
				Code:        spec.ValidationError,
				Message:     fmt.Sprintf("%d validation finding(s), first: %s", len(findings), findings[0].Message),
				JSONPointer: findings[0].Pointer,
			}, cfg.Input)
		}
	}

	// 3) Parse into the model; resolution gaps come back as warnings
	doc, err := spec.Parse(raw)
	if err != nil {
		return mapSpecError(err, cfg.Input)
	}
	for _, w := range doc.Warnings {
		logger.Warn(w.Message, "pointer", w.Pointer)
	}
	logger.Info("parsed document",
		"dialect", doc.Dialect, "version", doc.Version,
		"services", len(doc.Services), "types", len(doc.Types), "warnings", len(doc.Warnings))

	absOut := cfg.Out
	if ap, err := filepath.Abs(cfg.Out); err == nil {
		absOut = ap
	}

	// 4) Render and write
	res, err := tsemitter.Emit(ctx, doc, tsemitter.Options{
		Tags:          cfg.Tags,
		ExcludeTags:   cfg.ExcludeTags,
		RequestModule: cfg.RequestModule,
		APIPrefix:     cfg.APIPrefix,
		OutDir:        cfg.Out,
		Force:         cfg.Force,
		DryRun:        cfg.DryRun,
	})
	if err != nil {
		if errors.Is(err, tsemitter.ErrUnknownTag) {
			return newUsageError(fmt.Sprintf("generate: %v\nAvailable tags: %s", err, strings.Join(doc.Tags(), ", ")))
		}
		return wrapOutputError(err, absOut)
	}

	paths := make([]string, 0, len(res.Planned))
	for _, p := range res.Planned {
		paths = append(paths, p.RelPath)
	}
	if cfg.DryRun {
		printPlan(stdout, absOut, paths)
		return nil
	}
	logger.Info("wrote services", "out", absOut, "files", len(paths))
	return nil
}

// mapSpecError renders a SpecError with its location and pointer. Bad
// input and unreadable documents are usage errors; the rest fail plainly.
func mapSpecError(err error, input string) error {
	var se *spec.SpecError
	if !errors.As(err, &se) {
		return err
	}
	msg := se.Message
	location := se.Location
	if location == "" {
		location = input
	}
	if location != "" {
		msg = fmt.Sprintf("%s\nLocation: %s", msg, location)
	}
	if se.JSONPointer != "" {
		msg = fmt.Sprintf("%s\nPointer: %s", msg, se.JSONPointer)
	}
	if errors.Is(err, spec.ErrParse) || se.Code == spec.InputError {
		return newUsageError(msg)
	}
	return detailedError{msg: msg, err: err}
}

func printPlan(w io.Writer, outDir string, relPaths []string) {
	fmt.Fprintf(w, "Planned writes to %s (%d files):\n", outDir, len(relPaths))
	for _, p := range relPaths {
		fmt.Fprintf(w, "- %s\n", p)
	}
}

func wrapOutputError(err error, outDir string) error {
	if errors.Is(err, tsemitter.ErrOutputExists) {
		return newUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --out or use --force to overwrite.", outDir, err))
	}
	// Provide clearer guidance for common FS failures.
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") {
		return newUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --out.", outDir, err))
	}
	return err
}

func sanitizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a))
	for _, item := range a {
		set[item] = struct{}{}
	}
	var result []string
	for _, item := range b {
		if _, ok := set[item]; ok {
			result = append(result, item)
		}
	}
	return result
}

func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	for key, value := range raw {
		var ferr error
		switch normalizeKey(key) {
		case "input":
			cfg.Input, ferr = valueAsString(value)
		case "out":
			cfg.Out, ferr = valueAsString(value)
		case "tags":
			var list []string
			list, ferr = valueAsStringSlice(value)
			cfg.Tags = sanitizeTags(list)
		case "excludetags":
			var list []string
			list, ferr = valueAsStringSlice(value)
			cfg.ExcludeTags = sanitizeTags(list)
		case "requestmodule":
			cfg.RequestModule, ferr = valueAsString(value)
		case "apiprefix":
			cfg.APIPrefix, ferr = valueAsString(value)
		case "validate":
			cfg.Validate, ferr = valueAsBool(value)
		case "strict":
			cfg.Strict, ferr = valueAsBool(value)
		case "dryrun":
			cfg.DryRun, ferr = valueAsBool(value)
		case "force":
			cfg.Force, ferr = valueAsBool(value)
		case "verbose":
			cfg.Verbose, ferr = valueAsBool(value)
		default:
			return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
		}
		if ferr != nil {
			return newUsageError(fmt.Sprintf("config field %q: %v", key, ferr))
		}
	}

	return nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		switch trimmed {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n", "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
