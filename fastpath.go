package boardflow

import (
	"strings"
	"unicode"
)

// Language is the detected language of an instruction.
type Language string

const (
	// LanguageEnglish is the default when no other script dominates.
	LanguageEnglish Language = "en"

	// LanguageKorean is detected from Hangul characters.
	LanguageKorean Language = "ko"
)

// DetectLanguage classifies an instruction by script. Any Hangul at all
// marks the instruction Korean, since mixed input like "Login 완료" still
// expects a Korean reply.
func DetectLanguage(instruction string) Language {
	for _, r := range instruction {
		if unicode.Is(unicode.Hangul, r) {
			return LanguageKorean
		}
	}
	return LanguageEnglish
}

// Hint is advisory input to the skeleton compiler prompt. It narrows the
// likely intent kind for high-frequency phrasings but never overrides the
// compiler or later stages.
type Hint struct {
	// Kind is the likely intent kind, empty if unknown.
	Kind IntentKind `json:"kind,omitempty"`

	// Status is the status keyword found in the instruction, if any.
	Status TaskStatus `json:"status,omitempty"`

	// Bulk marks quantified references ("all", "모든").
	Bulk bool `json:"bulk,omitempty"`

	// Language is the detected instruction language.
	Language Language `json:"language"`
}

// MatchResult is the outcome of the fast-path matcher.
type MatchResult struct {
	// Hit reports whether any heuristic fired.
	Hit bool

	// Hint carries the advisory routing information. Language is always
	// populated, even on a miss.
	Hint Hint
}

// kindKeywords routes high-frequency verbs to an intent kind. Korean
// keywords sit beside their English counterparts so the matcher works on
// the bilingual input the board sees in practice.
var kindKeywords = []struct {
	kind  IntentKind
	words []string
}{
	{IntentDeleteTask, []string{"delete", "remove", "삭제", "지워", "지우"}},
	{IntentRestoreTask, []string{"restore", "recover", "undelete", "복구", "복원", "되살려"}},
	{IntentCreateTask, []string{"add", "create", "new task", "추가", "만들", "생성"}},
	{IntentQueryTasks, []string{"show", "list", "find", "search", "보여", "찾아", "검색"}},
	{IntentChangeView, []string{"kanban", "table view", "todo view", "칸반", "테이블"}},
	{IntentUndo, []string{"undo", "취소", "되돌려"}},
	{IntentChangeStatus, []string{"done", "complete", "finish", "start", "완료", "끝", "시작"}},
}

// statusKeywords maps status phrasings to concrete statuses.
var statusKeywords = []struct {
	status TaskStatus
	words  []string
}{
	{TaskStatusDone, []string{"done", "complete", "finished", "완료", "끝"}},
	{TaskStatusInProgress, []string{"in progress", "in-progress", "start", "doing", "진행", "시작"}},
	{TaskStatusReview, []string{"review", "리뷰", "검토"}},
	{TaskStatusTodo, []string{"todo", "to do", "backlog", "할일", "할 일"}},
}

// bulkKeywords mark quantified references over the whole (filtered) board.
var bulkKeywords = []string{"all", "everything", "every task", "모든", "모두", "전부", "전체"}

// MatchFastPath runs the cheap deterministic heuristics over an
// instruction before any model call. Pure and synchronous; its worst
// case is a miss with only the language populated.
func MatchFastPath(instruction string) MatchResult {
	lowered := strings.ToLower(instruction)
	result := MatchResult{Hint: Hint{Language: DetectLanguage(instruction)}}

	for _, entry := range kindKeywords {
		if containsAny(lowered, entry.words) {
			result.Hit = true
			result.Hint.Kind = entry.kind
			break
		}
	}
	for _, entry := range statusKeywords {
		if containsAny(lowered, entry.words) {
			result.Hit = true
			result.Hint.Status = entry.status
			break
		}
	}
	if containsAny(lowered, bulkKeywords) {
		result.Hit = true
		result.Hint.Bulk = true
	}

	return result
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
