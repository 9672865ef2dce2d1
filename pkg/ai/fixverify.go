package ai

import (
	"context"
	"fmt"
	"strings"
)

// VerifyFix asks whether newCode is a plausible fix for errorLog. Any model
// failure counts as "no".
func (a *Assistant) VerifyFix(ctx context.Context, errorLog, originalCode, newCode string) bool {
	raw, err := a.generate(ctx, "verify_fix", verifyFixPrompt(errorLog, originalCode, newCode))
	if err != nil {
		a.fallback("verify_fix", err, "")
		return false
	}

	verdict := strings.ToLower(strings.TrimSpace(raw))
	a.logger.Info().Str("verdict", truncate(verdict, 80)).Msg("fix verification verdict")
	return strings.Contains(verdict, "yes")
}

func verifyFixPrompt(errorLog, originalCode, newCode string) string {
	return fmt.Sprintf(`You are a senior code reviewer. Your task is to determine if a code change is a valid fix for a given error.
Respond with only a single word: 'yes' or 'no'.

Here is the original error message:
--- ERROR LOG ---
%s
--- END ERROR LOG ---

Here is the original, broken code:
--- ORIGINAL CODE ---
%s
--- END ORIGINAL CODE ---

Here is the new, proposed code fix:
--- NEW CODE ---
%s
--- END NEW CODE ---

Based on all the information, is the 'NEW CODE' a valid and logical fix for the 'ERROR LOG'?
Answer with only 'yes' or 'no'.`, errorLog, originalCode, newCode)
}
