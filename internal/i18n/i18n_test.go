package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	return WithLang(context.Background(), lang)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "FeedbackCorrect"); got != "Correct!" {
		t.Errorf("T(FeedbackCorrect) = %q, want 'Correct!'", got)
	}
	if got := T(ctx, "HealthMessage"); got != "QuizFlow API is running!" {
		t.Errorf("T(HealthMessage) = %q", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	if got := T(ctx, "FeedbackCorrect"); got != "Верно!" {
		t.Errorf("T(FeedbackCorrect) = %q, want 'Верно!'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "QuestionsCount", 1); got != "1 question" {
		t.Errorf("Tp(QuestionsCount, 1) = %q", got)
	}
	if got := Tp(ctx, "QuestionsCount", 25); got != "25 questions" {
		t.Errorf("Tp(QuestionsCount, 25) = %q", got)
	}

	ru := initLang(t, "ru")
	if got := Tp(ru, "QuestionsCount", 5); got != "5 вопросов" {
		t.Errorf("Tp(ru, QuestionsCount, 5) = %q", got)
	}
	if got := Tp(ru, "QuestionsCount", 3); got != "3 вопроса" {
		t.Errorf("Tp(ru, QuestionsCount, 3) = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "FeedbackIncorrect", map[string]any{"Answer": "True"})
	if got != "Incorrect. The correct answer is: True" {
		t.Errorf("Td(FeedbackIncorrect) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestMiddlewareUsesAcceptLanguage(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	var got string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "FeedbackCorrect")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "Верно!" {
		t.Errorf("with ru header got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "Correct!" {
		t.Errorf("without header got %q", got)
	}
}
