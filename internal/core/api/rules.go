package api

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/mailscore/internal/core/metrics"
	"github.com/solatis/mailscore/internal/pattern"
)

// Compile checks a pattern and returns its canonical tree. It does not
// touch the rule store.
func (s *ScoringService) Compile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req RuleRequest
	if err := decode(in.AsMap(), &req); err != nil {
		return nil, invalidArgument(err)
	}

	p, err := pattern.Compile(req.Pattern, pattern.ClassAll)
	if err != nil {
		metrics.PatternErrors.WithLabelValues("api").Inc()
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]interface{}{
		"pattern": p.Source,
		"tree":    pattern.Format(p.Root),
	})
}

// AddRule adds a rule or updates the value of an existing one. The value
// is a token such as "10", "-5" or "=100".
func (s *ScoringService) AddRule(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req RuleRequest
	if err := decode(in.AsMap(), &req); err != nil {
		return nil, invalidArgument(err)
	}
	if req.Pattern == "" || req.Value == "" {
		return nil, invalidArgument(fmt.Errorf("pattern and value required"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	store := s.engine.Store()
	if err := store.UpsertToken(req.Pattern, req.Value); err != nil {
		metrics.PatternErrors.WithLabelValues("api").Inc()
		return nil, toStatus(err)
	}
	metrics.RulesLoaded.Set(float64(store.Len()))
	s.logger.Debug("score rule set", "pattern", req.Pattern, "value", req.Value)

	return structpb.NewStruct(map[string]interface{}{"rules": store.Len()})
}

// RemoveRule removes the rule with the given pattern, or every rule for "*".
func (s *ScoringService) RemoveRule(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req RuleRequest
	if err := decode(in.AsMap(), &req); err != nil {
		return nil, invalidArgument(err)
	}
	if req.Pattern == "" {
		return nil, invalidArgument(fmt.Errorf("pattern required"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	store := s.engine.Store()
	n := store.Remove(req.Pattern)
	metrics.RulesLoaded.Set(float64(store.Len()))
	s.logger.Debug("score rule removed", "pattern", req.Pattern, "removed", n)

	return structpb.NewStruct(map[string]interface{}{
		"removed": n,
		"rules":   store.Len(),
	})
}

// ListRules returns the rules in evaluation order.
func (s *ScoringService) ListRules(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	s.mu.Lock()
	rules := s.engine.Store().Rules()
	s.mu.Unlock()

	out := make([]interface{}, 0, len(rules))
	for _, r := range rules {
		out = append(out, map[string]interface{}{
			"pattern": r.Source,
			"value":   r.ValueToken(),
		})
	}
	return structpb.NewStruct(map[string]interface{}{"rules": out})
}
