package answer

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/kailas-cloud/manualqa/internal/domain"
)

// mockCompleter records prompts and answers from a canned reply function.
type mockCompleter struct {
	prompts []string
	reply   func(prompt string) string
	err     error
}

func (m *mockCompleter) Complete(_ context.Context, prompt string) (domain.CompletionResult, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return domain.CompletionResult{}, m.err
	}
	return domain.CompletionResult{Text: m.reply(prompt), TotalTokens: 42}, nil
}

// groundedReply answers with the interval found in the excerpts, or refuses.
func groundedReply(prompt string) string {
	excerpts := prompt[strings.Index(prompt, "Manual Excerpts:"):strings.Index(prompt, "Question:")]
	if m := regexp.MustCompile(`every (\d+ months)`).FindStringSubmatch(excerpts); m != nil {
		return "  The pressure valve must be checked every " + m[1] + ".\n"
	}
	return RefusalMessage
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("USER: excerpt one\n\nOPERATOR: excerpt two", "What now?")

	for _, want := range []string{
		"Use only the information from the provided manuals",
		"Do not assume or make up any details.",
		"Maintain original units, numbers, and terminology.",
		`"` + RefusalMessage + `"`,
		"Manual Excerpts:\nUSER: excerpt one\n\nOPERATOR: excerpt two\n",
		"Question: What now?\nAnswer:",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
}

func TestAnswer_PressureValve(t *testing.T) {
	comp := &mockCompleter{reply: groundedReply}
	svc := New(comp, nil)

	ctx, usage := domain.NewContextWithUsage(context.Background())
	got, err := svc.Answer(ctx,
		"OPERATOR: The pressure valve must be checked every 6 months.",
		"How often should the pressure valve be checked?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(got, "6 months") {
		t.Errorf("answer should reference 6 months, got %q", got)
	}
	if intervals := regexp.MustCompile(`\d+ (months|weeks|days|years)`).FindAllString(got, -1); len(intervals) != 1 {
		t.Errorf("answer should mention exactly one interval, got %v", intervals)
	}
	if got != strings.TrimSpace(got) {
		t.Errorf("answer not trimmed: %q", got)
	}
	if len(comp.prompts) != 1 || !strings.Contains(comp.prompts[0], "OPERATOR: The pressure valve must be checked every 6 months.") {
		t.Errorf("completer did not receive the context: %v", comp.prompts)
	}
	if usage.CompletionTokens != 42 {
		t.Errorf("expected 42 completion tokens recorded, got %d", usage.CompletionTokens)
	}
}

func TestAnswer_QuestionVerbatim(t *testing.T) {
	comp := &mockCompleter{reply: func(string) string { return "ok" }}
	svc := New(comp, nil)

	question := "  Where is the RESET switch?\t"
	if _, err := svc.Answer(context.Background(), "USER: Reset is on the back panel.", question); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(comp.prompts) != 1 || !strings.Contains(comp.prompts[0], "Question: "+question+"\nAnswer:") {
		t.Errorf("question not passed verbatim:\n%v", comp.prompts)
	}
}

func TestAnswer_Refusal(t *testing.T) {
	svc := New(&mockCompleter{reply: groundedReply}, nil)

	got, err := svc.Answer(context.Background(), "USER: Plug in the charger.", "What colour is the casing?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != RefusalMessage {
		t.Errorf("expected refusal, got %q", got)
	}
}

func TestAnswer_EmptyInput(t *testing.T) {
	comp := &mockCompleter{reply: groundedReply}
	svc := New(comp, nil)

	tests := []struct{ name, excerpts, question string }{
		{"empty context", " ", "question?"},
		{"empty question", "USER: text", "\t"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Answer(context.Background(), tc.excerpts, tc.question); !errors.Is(err, ErrEmptyInput) {
				t.Fatalf("expected ErrEmptyInput, got %v", err)
			}
		})
	}
	if len(comp.prompts) != 0 {
		t.Errorf("no remote call expected, got %d", len(comp.prompts))
	}
}

func TestAnswer_ProviderError(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"already classified", errors.Join(domain.ErrCompletionProviderError, errors.New("500"))},
		{"raw error", errors.New("connection reset")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := New(&mockCompleter{err: tc.err}, nil)
			_, err := svc.Answer(context.Background(), "USER: text", "q?")
			if !errors.Is(err, domain.ErrCompletionProviderError) {
				t.Fatalf("expected ErrCompletionProviderError, got %v", err)
			}
		})
	}
}
