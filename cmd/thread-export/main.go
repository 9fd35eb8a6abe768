package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"disqus-widget/internal/adapters/disqus"
	"disqus-widget/internal/domain"
	"disqus-widget/internal/infra/config"
	applog "disqus-widget/internal/infra/log"
	"disqus-widget/internal/infra/metrics"
	"disqus-widget/internal/usecase/comments"
)

func main() {
	var (
		identifier  string
		title       string
		pageURL     string
		pageID      int
		accessToken string
		userID      string
	)
	flag.StringVar(&identifier, "identifier", "", "Идентификатор треда (по умолчанию генерируется новый GUID)")
	flag.StringVar(&title, "title", "", "Заголовок для создаваемого треда")
	flag.StringVar(&pageURL, "url", "", "URL страницы треда")
	flag.IntVar(&pageID, "page-id", 0, "Числовой идентификатор страницы-владельца")
	flag.StringVar(&accessToken, "access-token", "", "Access token пользователя Disqus (опционально)")
	flag.StringVar(&userID, "user-id", "", "Идентификатор пользователя Disqus (опционально)")
	flag.Parse()

	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	serverCtx, stopMetrics := context.WithCancel(context.Background())
	defer stopMetrics()
	metrics.StartServer(serverCtx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	if cfg.Disqus.Site == "" || cfg.Disqus.APIKey == "" || cfg.Disqus.APISecret == "" {
		logger.Fatal().Msg("thread-export: требуются DISQUS_SITE, DISQUS_API_KEY и DISQUS_API_SECRET")
	}
	if identifier == "" {
		identifier = uuid.NewString()
		logger.Info().Str("identifier", identifier).Msg("thread-export: идентификатор не задан, сгенерирован новый")
	}

	session := domain.StaticSession{UserID: userID, AccessToken: accessToken}
	client := disqus.NewClient(disqus.Config{
		BaseURL:   cfg.Disqus.BaseURL,
		Forum:     cfg.Disqus.Site,
		APIKey:    cfg.Disqus.APIKey,
		APISecret: cfg.Disqus.APISecret,
		Timeout:   cfg.Disqus.Timeout,
		RPS:       cfg.Disqus.RPS,
		Burst:     cfg.Disqus.Burst,
	}, session)

	forum, err := client.GetForum(context.Background(), cfg.Disqus.Site)
	if err != nil {
		logger.Fatal().Err(err).Msg("thread-export: форум недоступен")
	}

	repo := comments.NewRepository(client, session, forum.ID, logger.With().Str("component", "repository").Logger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	threadID, err := client.ResolveOrCreateThread(ctx, identifier, title, pageURL, pageID)
	if err != nil {
		logger.Fatal().Err(err).Msg("thread-export: не удалось разрешить тред")
	}

	thread, err := repo.GetThread(ctx, threadID, false)
	if err != nil {
		logger.Fatal().Err(err).Msg("thread-export: не удалось получить тред")
	}
	if thread == nil {
		logger.Fatal().Str("thread", threadID).Msg("thread-export: тред недоступен")
	}

	ordered, err := repo.GetAllPosts(ctx, threadID, false)
	if err != nil {
		logger.Fatal().Err(err).Msg("thread-export: не удалось получить комментарии")
	}

	fmt.Printf("%s (%s)\n", thread.Title, thread.Link)
	if len(ordered) == 0 {
		fmt.Println("комментариев нет")
		os.Exit(0)
	}
	for _, post := range ordered {
		author := "аноним"
		if post.Author != nil {
			author = post.Author.Name
		}
		indent := strings.Repeat("    ", post.NestingLevel)
		fmt.Printf("%s%s [+%d/-%d] %s\n", indent, author, post.Likes, post.Dislikes, post.RawMessage)
	}

	rating, err := repo.GetThreadAverageRating(ctx, threadID)
	if err == nil && rating > 0 {
		fmt.Printf("средняя оценка треда: %.1f\n", rating)
	}
}
