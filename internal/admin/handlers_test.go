package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mathrumble/mathrumble/internal/game"
	"github.com/mathrumble/mathrumble/internal/models"
)

type fakeQuestionStore struct {
	created        []models.Question
	listDifficulty string
	listResult     []models.Question
}

func (s *fakeQuestionStore) CreateCustom(ctx context.Context, text string, answer float64, difficulty string, timeLimit int) (models.Question, error) {
	q := models.Question{
		ID:           uuid.New(),
		QuestionText: text,
		Answer:       answer,
		Difficulty:   difficulty,
		TimeLimit:    timeLimit,
		IsCustom:     true,
	}
	s.created = append(s.created, q)
	return q, nil
}

func (s *fakeQuestionStore) ListCustom(ctx context.Context, difficulty string) ([]models.Question, error) {
	s.listDifficulty = difficulty
	return s.listResult, nil
}

type fakeSettings struct {
	updates []game.Defaults
}

func (s *fakeSettings) UpdateDefaults(d game.Defaults) {
	s.updates = append(s.updates, d)
}

func newAdminServer(t *testing.T, store *fakeQuestionStore, settings *fakeSettings) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewHandler(store, settings, zerolog.Nop()).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCreateQuestionDefaults(t *testing.T) {
	store := &fakeQuestionStore{}
	srv := newAdminServer(t, store, &fakeSettings{})

	body := strings.NewReader(`{"question_text": "7 + 8", "answer": 15}`)
	resp, err := http.Post(srv.URL+"/admin/questions", "application/json", body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if len(store.created) != 1 {
		t.Fatalf("created %d questions, want 1", len(store.created))
	}
	if q := store.created[0]; q.Difficulty != "easy" || q.TimeLimit != 10 {
		t.Errorf("defaults not applied: %+v", q)
	}
}

func TestListQuestionsFiltersByDifficulty(t *testing.T) {
	store := &fakeQuestionStore{
		listResult: []models.Question{
			{ID: uuid.New(), QuestionText: "3 × 4", Difficulty: "medium", TimeLimit: 12, IsCustom: true},
		},
	}
	srv := newAdminServer(t, store, &fakeSettings{})

	resp, err := http.Get(srv.URL + "/admin/questions?difficulty=medium")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if store.listDifficulty != "medium" {
		t.Errorf("store queried with difficulty %q, want medium", store.listDifficulty)
	}

	var out struct {
		Questions []models.Question `json:"questions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Questions) != 1 || out.Questions[0].QuestionText != "3 × 4" {
		t.Errorf("questions = %+v", out.Questions)
	}
}

func TestListQuestionsEmptyBankIsEmptyArray(t *testing.T) {
	srv := newAdminServer(t, &fakeQuestionStore{}, &fakeSettings{})

	resp, err := http.Get(srv.URL + "/admin/questions")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(out["questions"]) != "[]" {
		t.Errorf("questions = %s, want []", out["questions"])
	}
}

func TestListQuestionsRejectsUnknownDifficulty(t *testing.T) {
	srv := newAdminServer(t, &fakeQuestionStore{}, &fakeSettings{})

	resp, err := http.Get(srv.URL + "/admin/questions?difficulty=impossible")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUpdateSettingsForwardsDefaults(t *testing.T) {
	settings := &fakeSettings{}
	srv := newAdminServer(t, &fakeQuestionStore{}, settings)

	body := strings.NewReader(`{"difficulty": "hard", "win_threshold": 5}`)
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/admin/settings", body)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if len(settings.updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(settings.updates))
	}
	if d := settings.updates[0]; d.Difficulty != "hard" || d.WinThreshold != 5 {
		t.Errorf("defaults = %+v", d)
	}
}
