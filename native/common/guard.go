package common

import (
	"errors"
	"strings"
)

var ErrModulePaused = errors.New("module paused")

// Modules the token engine checks before acting.
const (
	ModuleTransfers = "token.transfers"
	ModuleSwap      = "token.swap"
	ModuleDividends = "token.dividends"
)

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// StaticPauses is a fixed pause list, typically loaded from configuration.
type StaticPauses map[string]bool

func NewStaticPauses(modules []string) StaticPauses {
	out := make(StaticPauses, len(modules))
	for _, module := range modules {
		if normalized := normalizeModule(module); normalized != "" {
			out[normalized] = true
		}
	}
	return out
}

func (s StaticPauses) IsPaused(module string) bool {
	return s[normalizeModule(module)]
}

func normalizeModule(module string) string {
	return strings.ToLower(strings.TrimSpace(module))
}
