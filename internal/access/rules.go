package access

import (
	"regexp"

	"github.com/routekit/routekit/internal/apperr"
	"github.com/routekit/routekit/internal/config"
)

// RuleSet 是启动时编译好的公开路径规则，编译后只读，可被并发请求共享。
type RuleSet struct {
	literals map[string]struct{}
	patterns []*regexp.Regexp
	prefix   string
}

// Compile 将配置中的规则编译为 RuleSet；任意正则编译失败都直接返回 ConfigurationError。
func Compile(cfg config.AccessConfig) (*RuleSet, error) {
	set := &RuleSet{
		literals: make(map[string]struct{}),
		prefix:   cfg.ReservedPrefix,
	}
	for i, rule := range cfg.Public {
		switch rule.Kind {
		case config.AccessRuleLiteral:
			set.literals[rule.Pattern] = struct{}{}
		case config.AccessRuleRegex:
			re, err := regexp.Compile(rule.Pattern)
			if err != nil {
				return nil, apperr.Configuration("Access.Public[%d]: invalid regex rule %q: %v", i, rule.Pattern, err)
			}
			set.patterns = append(set.patterns, re)
		default:
			return nil, apperr.Configuration("Access.Public[%d]: unknown rule kind %q", i, rule.Kind)
		}
	}
	return set, nil
}

// Len 返回规则总数（字面量 + 正则），用于启动日志。
func (s *RuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.literals) + len(s.patterns)
}

func (s *RuleSet) matchLiteral(path string) bool {
	_, ok := s.literals[path]
	return ok
}

func (s *RuleSet) matchPattern(path string) bool {
	for _, re := range s.patterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

func (s *RuleSet) matchPrefix(path string) bool {
	return s.prefix != "" && len(path) >= len(s.prefix) && path[:len(s.prefix)] == s.prefix
}
