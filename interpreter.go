package boardflow

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Interpreter turns a completed execution into a short user-facing
// confirmation, in the language the instruction was written in.
//
// This stage is cosmetic by contract: it makes one model call, and if
// that fails it falls back to a deterministic per-kind message. A failure
// here never rolls back or invalidates the already-computed effects.
type Interpreter struct {
	model  ModelClient
	logger *zap.Logger
}

// NewInterpreter creates a result interpreter backed by the given model.
func NewInterpreter(model ModelClient, logger *zap.Logger) *Interpreter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interpreter{model: model, logger: logger}
}

const interpreterSystemPrompt = `You summarize a completed task board operation for the user.
Reply with one short, friendly sentence in the requested language.
Plain text only - no JSON, no markdown.`

// Interpret produces the confirmation message for a successful turn.
func (i *Interpreter) Interpret(ctx context.Context, intent Intent, result ExecResult, diff *SnapshotDiff, lang Language) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Operation: %s\n", intent.IntentKind())
	fmt.Fprintf(&b, "Changes: %s\n", diff.Summary())
	if len(result.Tasks) > 0 {
		fmt.Fprintf(&b, "Matched tasks: %d\n", len(result.Tasks))
		for _, t := range result.Tasks {
			fmt.Fprintf(&b, "- %q [%s]\n", t.Title, t.Status)
		}
	}
	fmt.Fprintf(&b, "Language: %s\n", lang)

	output, err := i.model.Complete(ctx, interpreterSystemPrompt, b.String())
	if err != nil {
		i.logger.Debug("interpreter model call failed, using fallback",
			zap.Error(&ModelError{Stage: "result interpreter", Cause: err}))
		return FallbackMessage(intent.IntentKind(), lang)
	}
	message := strings.TrimSpace(output)
	if message == "" {
		return FallbackMessage(intent.IntentKind(), lang)
	}
	return message
}

// fallbackMessages are the deterministic per-kind defaults used when the
// interpreter model call fails.
var fallbackMessages = map[Language]map[IntentKind]string{
	LanguageEnglish: {
		IntentCreateTask:           "Added the task.",
		IntentUpdateTask:           "Updated the task.",
		IntentChangeStatus:         "Moved the task.",
		IntentDeleteTask:           "Deleted the task.",
		IntentRestoreTask:          "Restored the task.",
		IntentSelectTask:           "Selected the task.",
		IntentQueryTasks:           "Here are the matching tasks.",
		IntentChangeView:           "Changed the view.",
		IntentSetDateFilter:        "Updated the date filter.",
		IntentUndo:                 "Undid the last change.",
		IntentToggleAssistant:      "Toggled the assistant.",
		IntentRequestClarification: "Could you clarify what you meant?",
	},
	LanguageKorean: {
		IntentCreateTask:           "작업을 추가했습니다.",
		IntentUpdateTask:           "작업을 수정했습니다.",
		IntentChangeStatus:         "작업 상태를 변경했습니다.",
		IntentDeleteTask:           "작업을 삭제했습니다.",
		IntentRestoreTask:          "작업을 복구했습니다.",
		IntentSelectTask:           "작업을 선택했습니다.",
		IntentQueryTasks:           "조건에 맞는 작업입니다.",
		IntentChangeView:           "보기를 변경했습니다.",
		IntentSetDateFilter:        "날짜 필터를 변경했습니다.",
		IntentUndo:                 "마지막 변경을 취소했습니다.",
		IntentToggleAssistant:      "어시스턴트를 전환했습니다.",
		IntentRequestClarification: "무엇을 원하시는지 조금 더 알려주세요.",
	},
}

// FallbackMessage returns the deterministic default confirmation for an
// intent kind in the given language.
func FallbackMessage(kind IntentKind, lang Language) string {
	byKind, ok := fallbackMessages[lang]
	if !ok {
		byKind = fallbackMessages[LanguageEnglish]
	}
	if msg, ok := byKind[kind]; ok {
		return msg
	}
	if lang == LanguageKorean {
		return "완료했습니다."
	}
	return "Done."
}
