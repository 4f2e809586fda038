// Package logging provides structured logging for tutord.
//
// # Overview
//
// The package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Automatic context field injection (evaluation.id, request.id)
//   - JSON or console output
//
// # Usage
//
// Create logger from config:
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
// Log with context:
//
//	ctx := logging.WithEvaluationID(ctx, evalID)
//	logger.Info(ctx, "submission graded", zap.Bool("is_correct", ok))
//
// Output includes automatic correlation:
//
//	{
//	  "ts": "2026-08-25T10:15:30Z",
//	  "level": "info",
//	  "msg": "submission graded",
//	  "evaluation.id": "6f1c...",
//	  "is_correct": true
//	}
package logging
