package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"esgledger/internal/app"
	"esgledger/internal/platform/config"
	rollover "esgledger/internal/rollover/models"
	dErrors "esgledger/pkg/domain-errors"
)

const dateLayout = "2006-01-02"

var (
	envKeyReplacer = strings.NewReplacer(".", "_")
	cliLogger      = slog.Default()
)

func setLogger(l *slog.Logger) {
	cliLogger = l
	slog.SetDefault(l)
}

// openApp wires the services from the resolved viper config.
func openApp(ctx context.Context) (*app.App, config.Server, error) {
	cfg := config.FromViper(viper.GetViper())
	a, err := app.New(ctx, cfg, cliLogger)
	if err != nil {
		return nil, cfg, err
	}
	return a, cfg, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseDate(flag, raw string) (time.Time, error) {
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, dErrors.Newf(dErrors.CodeBadRequest, "--%s must be YYYY-MM-DD", flag)
	}
	return t, nil
}

// parseOverrides reads data_type=rule pairs.
func parseOverrides(pairs []string) ([]rollover.RolloverRuleOverride, error) {
	var out []rollover.RolloverRuleOverride
	for _, pair := range pairs {
		dataType, rule, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(dataType) == "" {
			return nil, dErrors.Newf(dErrors.CodeBadRequest, "override %q must be data_type=rule", pair)
		}
		ruleType, err := rollover.ParseRuleType(strings.TrimSpace(rule))
		if err != nil {
			return nil, err
		}
		out = append(out, rollover.RolloverRuleOverride{DataType: strings.TrimSpace(dataType), RuleType: ruleType})
	}
	return out, nil
}

// parseMappings reads SOURCE=TARGET catalog code pairs.
func parseMappings(pairs []string) ([]rollover.ManualSectionMapping, error) {
	var out []rollover.ManualSectionMapping
	for _, pair := range pairs {
		src, tgt, ok := strings.Cut(pair, "=")
		src, tgt = strings.TrimSpace(src), strings.TrimSpace(tgt)
		if !ok || src == "" || tgt == "" {
			return nil, dErrors.Newf(dErrors.CodeBadRequest, "mapping %q must be SOURCE=TARGET", pair)
		}
		out = append(out, rollover.ManualSectionMapping{SourceCatalogCode: src, TargetCatalogCode: tgt})
	}
	return out, nil
}

func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		cliLogger.Warn("close resources", "error", err)
	}
}

func requireDatabase(a *app.App, command string) error {
	if a.DB == nil {
		return fmt.Errorf("%s requires --database-url", command)
	}
	return nil
}
