package disqus

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"

	"disqus-widget/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler, session domain.SessionSource) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(Config{
		BaseURL:   server.URL,
		Forum:     "site",
		APIKey:    "public-key",
		APISecret: "shared-secret",
		RPS:       1000,
		Burst:     1000,
	}, session)
	client.SetHTTPClient(server.Client())
	return client
}

func writeEnvelope(w http.ResponseWriter, code int, response string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"code": %d, "response": %s}`, code, response)
}

func TestGetThread(t *testing.T) {
	router := chi.NewRouter()
	router.Get("/threads/details.json", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "public-key" {
			t.Errorf("GET должен подписываться api_key")
		}
		if r.URL.Query().Get("thread") != "t1" {
			t.Errorf("ожидали параметр thread=t1, получили %q", r.URL.Query().Get("thread"))
		}
		writeEnvelope(w, 0, `{
			"id": "t1",
			"clean_title": "Заголовок",
			"identifiers": ["page-guid;42"],
			"link": "https://example.com/page",
			"likes": 3,
			"posts": 7,
			"isClosed": true
		}`)
	})
	client := newTestClient(t, router, nil)

	thread, err := client.GetThread(context.Background(), "t1")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if thread.ID != "t1" || thread.Title != "Заголовок" || !thread.IsClosed {
		t.Fatalf("тред разобран неверно: %+v", thread)
	}
	if thread.PageID() != 42 {
		t.Fatalf("ожидали PageID 42, получили %d", thread.PageID())
	}
}

func TestAPIErrorMapping(t *testing.T) {
	router := chi.NewRouter()
	router.Post("/posts/create.json", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 2, `"missing args"`)
	})
	client := newTestClient(t, router, nil)

	_, err := client.CreatePost(context.Background(), "привет", "t1", "", 0)
	apiErr, ok := domain.AsAPIError(err)
	if !ok {
		t.Fatalf("ожидали *domain.APIError, получили %v", err)
	}
	if apiErr.Code != domain.ErrCodeMissingArgs {
		t.Fatalf("ожидали код 2, получили %d", apiErr.Code)
	}
	if apiErr.Message != "missing args" {
		t.Fatalf("ожидали сообщение сервера, получили %q", apiErr.Message)
	}
}

func TestMalformedResponse(t *testing.T) {
	router := chi.NewRouter()
	router.Get("/users/details.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>bad gateway</html>")
	})
	client := newTestClient(t, router, nil)

	_, err := client.GetUserDetails(context.Background(), "u1")
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("ожидали ErrMalformedResponse, получили %v", err)
	}
}

func TestCreatePostOptionalFields(t *testing.T) {
	var form url.Values
	router := chi.NewRouter()
	router.Post("/posts/create.json", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("не удалось разобрать форму: %v", err)
		}
		form = r.PostForm
		writeEnvelope(w, 0, `{"id": "p1", "thread": "t1", "message": "привет"}`)
	})
	client := newTestClient(t, router, nil)
	ctx := context.Background()

	if _, err := client.CreatePost(ctx, "привет", "t1", "", 0); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if form.Get("api_secret") != "shared-secret" {
		t.Fatalf("POST должен подписываться api_secret")
	}
	if _, ok := form["parent"]; ok {
		t.Fatalf("пустой parent не должен передаваться")
	}
	if _, ok := form["rating"]; ok {
		t.Fatalf("нулевой rating не должен передаваться")
	}
	if _, ok := form["access_token"]; ok {
		t.Fatalf("аноним не должен передавать access_token")
	}

	if _, err := client.CreatePost(ctx, "ответ", "t1", "p1", 4); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if form.Get("parent") != "p1" || form.Get("rating") != "4" {
		t.Fatalf("ожидали parent=p1 и rating=4, получили %v", form)
	}
}

func TestAccessTokenAppended(t *testing.T) {
	session := domain.StaticSession{UserID: "u1", AccessToken: "tok"}
	router := chi.NewRouter()
	router.Get("/threads/details.json", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != "tok" {
			t.Errorf("GET аутентифицированного пользователя должен содержать access_token")
		}
		writeEnvelope(w, 0, `{"id": "t1"}`)
	})
	router.Post("/threads/vote.json", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("не удалось разобрать форму: %v", err)
		}
		if r.PostForm.Get("access_token") != "tok" {
			t.Errorf("POST аутентифицированного пользователя должен содержать access_token")
		}
		writeEnvelope(w, 0, `{"vote": 1, "delta": 1, "thread": {"id": "t1", "likes": 4}}`)
	})
	client := newTestClient(t, router, session)
	ctx := context.Background()

	if _, err := client.GetThread(ctx, "t1"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	result, err := client.SubmitThreadVote(ctx, "t1", 1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if result.Delta != 1 || result.Likes != 4 {
		t.Fatalf("результат голосования разобран неверно: %+v", result)
	}
}

func TestSubmitPostVoteRejected(t *testing.T) {
	router := chi.NewRouter()
	router.Post("/posts/vote.json", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 0, `{"vote": 1, "delta": 0, "post": {"id": "p1", "likes": 3, "dislikes": 1}}`)
	})
	client := newTestClient(t, router, nil)

	result, err := client.SubmitPostVote(context.Background(), "p1", 1)
	if !errors.Is(err, domain.ErrVoteRejected) {
		t.Fatalf("ожидали ErrVoteRejected, получили %v", err)
	}
	if _, ok := domain.AsAPIError(err); ok {
		t.Fatalf("отклонённый голос не должен быть ошибкой API")
	}
	if result.Delta != 0 || result.Likes != 3 || result.Dislikes != 1 {
		t.Fatalf("результат голосования разобран неверно: %+v", result)
	}
}

func TestResolveOrCreateThread(t *testing.T) {
	created := false
	router := chi.NewRouter()
	router.Get("/forums/listThreads.json", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("forum") != "site" {
			t.Errorf("ожидали параметр forum=site")
		}
		writeEnvelope(w, 0, `[
			{"id": "t1", "identifiers": ["other;1"]},
			{"id": "t2", "identifiers": ["page-guid;42"]},
			{"id": "t3", "identifiers": ["page-guid;42"]}
		]`)
	})
	router.Post("/threads/create.json", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("не удалось разобрать форму: %v", err)
		}
		created = true
		if r.PostForm.Get("identifier") != "fresh-guid;7" {
			t.Errorf("ожидали составной идентификатор, получили %q", r.PostForm.Get("identifier"))
		}
		if r.PostForm.Get("url") != "https://example.com/fresh" {
			t.Errorf("ожидали url страницы, получили %q", r.PostForm.Get("url"))
		}
		writeEnvelope(w, 0, `{"id": "t9", "identifiers": ["fresh-guid;7"]}`)
	})
	client := newTestClient(t, router, nil)
	ctx := context.Background()

	// существующий тред: первое совпадение в порядке ответа API
	threadID, err := client.ResolveOrCreateThread(ctx, "page-guid", "Страница", "", 42)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if threadID != "t2" {
		t.Fatalf("ожидали первый совпавший тред t2, получили %s", threadID)
	}
	if created {
		t.Fatalf("существующий тред не должен создаваться заново")
	}

	// отсутствующий тред создаётся
	threadID, err = client.ResolveOrCreateThread(ctx, "fresh-guid", "Новая страница", "https://example.com/fresh", 7)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if threadID != "t9" || !created {
		t.Fatalf("ожидали созданный тред t9, получили %s", threadID)
	}
}

func TestIsUserFollowing(t *testing.T) {
	router := chi.NewRouter()
	router.Get("/users/listFollowing.json", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("user") != "u1" {
			t.Errorf("список подписок должен запрашиваться для текущего пользователя")
		}
		writeEnvelope(w, 0, `[{"id": "u5"}, {"id": "u7"}]`)
	})

	anon := newTestClient(t, router, nil)
	following, err := anon.IsUserFollowing(context.Background(), "u5")
	if err != nil || following {
		t.Fatalf("аноним ни на кого не подписан, получили %v, %v", following, err)
	}

	client := newTestClient(t, router, domain.StaticSession{UserID: "u1", AccessToken: "tok"})
	following, err = client.IsUserFollowing(context.Background(), "u5")
	if err != nil || !following {
		t.Fatalf("ожидали подписку на u5, получили %v, %v", following, err)
	}
	following, err = client.IsUserFollowing(context.Background(), "u9")
	if err != nil || following {
		t.Fatalf("на u9 подписки нет, получили %v, %v", following, err)
	}
}

func TestGetForumModerators(t *testing.T) {
	router := chi.NewRouter()
	router.Get("/forums/listModerators.json", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 0, `[{"user": {"id": "u9", "username": "mod"}}]`)
	})
	client := newTestClient(t, router, nil)

	moderators, err := client.GetForumModerators(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(moderators) != 1 || moderators[0].ID != "u9" || moderators[0].UserName != "mod" {
		t.Fatalf("модераторы разобраны неверно: %+v", moderators)
	}
}
