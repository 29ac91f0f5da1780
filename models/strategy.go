package models

import (
	"fmt"
	"strings"
)

// Strategy names how raw markup is acquired. It is carried for
// diagnostics and engine selection; it never changes extraction.
type Strategy string

const (
	// StrategyStatic fetches the document over plain HTTP.
	StrategyStatic Strategy = "static"

	// StrategyDynamic renders the page in a headless browser first.
	StrategyDynamic Strategy = "dynamic"

	// StrategyAuto races static then dynamic and keeps the first result
	// that contains listings.
	StrategyAuto Strategy = "auto"
)

// ParseStrategy validates a strategy name. The empty string maps to auto.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return StrategyAuto, nil
	case StrategyStatic:
		return StrategyStatic, nil
	case StrategyDynamic:
		return StrategyDynamic, nil
	case StrategyAuto:
		return StrategyAuto, nil
	}
	return "", fmt.Errorf("unknown strategy %q (want static, dynamic or auto)", s)
}
