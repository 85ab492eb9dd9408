package alerting

import "strings"

// RulesConfig - правила фильтрации алертов.
type RulesConfig struct {
	// MinSeverity: "INFO", "WARNING", "CRITICAL".
	MinSeverity string

	// IncludeErrorCodes имеет приоритет над ExcludeErrorCodes.
	ExcludeErrorCodes []string
	IncludeErrorCodes []string

	// IncludeOperations имеет приоритет над ExcludeOperations.
	ExcludeOperations []string
	IncludeOperations []string

	// Channels - правила конкретного канала.
	// ВНИМАНИЕ: override ПОЛНОСТЬЮ ЗАМЕНЯЕТ глобальные правила для канала, а не мержится с ними.
	Channels map[string]ChannelRulesConfig
}

// ChannelRulesConfig - правила для одного канала.
type ChannelRulesConfig struct {
	MinSeverity       string
	ExcludeErrorCodes []string
	IncludeErrorCodes []string
	ExcludeOperations []string
	IncludeOperations []string
}

type ruleConfig struct {
	minSeverity       Severity
	excludeErrorCodes map[string]struct{}
	includeErrorCodes map[string]struct{}
	excludeOperations map[string]struct{}
	includeOperations map[string]struct{}
}

// RulesEngine оценивает алерты по правилам фильтрации.
type RulesEngine struct {
	global   ruleConfig
	channels map[string]ruleConfig
}

// NewRulesEngine создаёт RulesEngine из конфигурации.
func NewRulesEngine(config RulesConfig) *RulesEngine {
	engine := &RulesEngine{
		global: buildRuleConfig(ChannelRulesConfig{
			MinSeverity:       config.MinSeverity,
			ExcludeErrorCodes: config.ExcludeErrorCodes,
			IncludeErrorCodes: config.IncludeErrorCodes,
			ExcludeOperations: config.ExcludeOperations,
			IncludeOperations: config.IncludeOperations,
		}),
		channels: make(map[string]ruleConfig, len(config.Channels)),
	}
	for name, ch := range config.Channels {
		engine.channels[name] = buildRuleConfig(ch)
	}
	return engine
}

// Evaluate проверяет, должен ли алерт уйти в канал channel.
func (e *RulesEngine) Evaluate(alert Alert, channel string) bool {
	rule := e.global
	if channelRule, ok := e.channels[channel]; ok {
		rule = channelRule
	}

	if alert.Severity < rule.minSeverity {
		return false
	}
	if !matchSet(rule.includeErrorCodes, rule.excludeErrorCodes, alert.ErrorCode) {
		return false
	}
	return matchSet(rule.includeOperations, rule.excludeOperations, alert.Operation)
}

// matchSet: непустой include работает как allow-list, иначе применяется exclude.
func matchSet(include, exclude map[string]struct{}, value string) bool {
	if len(include) > 0 {
		_, ok := include[value]
		return ok
	}
	_, excluded := exclude[value]
	return !excluded
}

func parseSeverity(s string) Severity {
	switch strings.ToUpper(s) {
	case "WARNING":
		return SeverityWarning
	case "CRITICAL":
		return SeverityCritical
	default:
		return SeverityInfo
	}
}

func buildRuleConfig(c ChannelRulesConfig) ruleConfig {
	return ruleConfig{
		minSeverity:       parseSeverity(c.MinSeverity),
		excludeErrorCodes: toSet(c.ExcludeErrorCodes),
		includeErrorCodes: toSet(c.IncludeErrorCodes),
		excludeOperations: toSet(c.ExcludeOperations),
		includeOperations: toSet(c.IncludeOperations),
	}
}

func toSet(items []string) map[string]struct{} {
	if len(items) == 0 {
		return nil
	}
	s := make(map[string]struct{}, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}
