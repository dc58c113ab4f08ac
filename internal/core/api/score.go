package api

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/mailscore/internal/core/auth"
	"github.com/solatis/mailscore/internal/types"
)

// Score scores a batch of messages against the current rules.
// A message without a key is rejected on its own; the rest of the batch is
// still scored. Threshold actions set flags on the returned records only.
func (s *ScoringService) Score(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ScoreRequest
	if err := decode(in.AsMap(), &req); err != nil {
		return nil, invalidArgument(err)
	}
	if len(req.Messages) == 0 {
		return nil, invalidArgument(fmt.Errorf("at least one message required"))
	}
	if len(req.Messages) > MaxBatchSize {
		return nil, invalidArgument(fmt.Errorf("batch size exceeds maximum of %d messages", MaxBatchSize))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]interface{}, 0, len(req.Messages))
	scored := make([]*types.Email, 0, len(req.Messages))
	for _, m := range req.Messages {
		if err := ctx.Err(); err != nil {
			return nil, toStatus(err)
		}
		if m.Key == "" {
			results = append(results, map[string]interface{}{
				"key":   "",
				"error": "key required",
			})
			continue
		}

		e := m.email()
		s.engine.ScoreOne(e, false)
		scored = append(scored, e)
		results = append(results, map[string]interface{}{
			"key":   e.Key,
			"score": e.Score(),
			"flags": flagList(e.Flags()),
		})
	}

	if req.Mailbox != "" && s.queries != nil && len(scored) > 0 {
		if err := s.queries.SaveScores(req.Mailbox, scored, time.Now()); err != nil {
			s.logger.Error("failed to persist scores", "mailbox", req.Mailbox, "error", err)
			return nil, toStatus(err)
		}
	}

	s.logger.Debug("scored batch",
		"client", auth.ClientFromContext(ctx),
		"messages", len(scored),
		"rules", s.engine.Store().Len())

	return structpb.NewStruct(map[string]interface{}{
		"scored":  len(scored),
		"results": results,
	})
}
