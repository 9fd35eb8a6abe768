package disqus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"disqus-widget/internal/domain"
	"disqus-widget/internal/infra/metrics"
)

// Config задаёт параметры подключения к Disqus API.
type Config struct {
	BaseURL   string
	Forum     string // короткое имя сайта (forum shortname)
	APIKey    string
	APISecret string
	Timeout   time.Duration
	RPS       float64
	Burst     int
}

// Client выполняет подписанные запросы к Disqus REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	session    domain.SessionSource
}

// NewClient создаёт клиент Disqus API. Пустой session трактуется как аноним.
func NewClient(cfg Config, session domain.SessionSource) *Client {
	client := &Client{cfg: cfg, session: session}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client.httpClient = &http.Client{Timeout: timeout}
	if cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://disqus.com/api/3.0"
	}
	client.limiter = newLimiter(cfg.RPS, cfg.Burst)
	return client
}

// SetHTTPClient подменяет HTTP клиент (используется в тестах).
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	if httpClient != nil {
		c.httpClient = httpClient
	}
}

func (c *Client) currentSession() domain.Session {
	if c.session == nil {
		return domain.Session{}
	}
	return c.session.Session()
}

// GetForum возвращает форум по идентификатору.
func (c *Client) GetForum(ctx context.Context, forumID string) (*domain.Forum, error) {
	params := url.Values{"forum": {forumID}}
	var dto forumDTO
	if err := c.get(ctx, "get_forum", "forums/details", params, &dto); err != nil {
		return nil, err
	}
	return dto.toDomain(), nil
}

// GetThread возвращает тред по идентификатору.
func (c *Client) GetThread(ctx context.Context, threadID string) (*domain.Thread, error) {
	params := url.Values{"thread": {threadID}}
	var dto threadDTO
	if err := c.get(ctx, "get_thread", "threads/details", params, &dto); err != nil {
		return nil, err
	}
	return dto.toDomain(), nil
}

// GetPost возвращает один комментарий по идентификатору.
func (c *Client) GetPost(ctx context.Context, postID string) (*domain.Post, error) {
	params := url.Values{"post": {postID}}
	var dto postDTO
	if err := c.get(ctx, "get_post", "posts/details", params, &dto); err != nil {
		return nil, err
	}
	return dto.toDomain(), nil
}

// GetThreadPosts возвращает плоский список комментариев треда,
// без иерархии и обратных ссылок — их строит репозиторий.
func (c *Client) GetThreadPosts(ctx context.Context, threadID string) ([]*domain.Post, error) {
	params := url.Values{"thread": {threadID}}
	var dtos []postDTO
	if err := c.get(ctx, "get_thread_posts", "threads/listPosts", params, &dtos); err != nil {
		return nil, err
	}
	posts := make([]*domain.Post, 0, len(dtos))
	for i := range dtos {
		posts = append(posts, dtos[i].toDomain())
	}
	return posts, nil
}

// GetUserDetails возвращает профиль пользователя.
func (c *Client) GetUserDetails(ctx context.Context, userID string) (*domain.User, error) {
	params := url.Values{"user": {userID}}
	var dto userDTO
	if err := c.get(ctx, "get_user", "users/details", params, &dto); err != nil {
		return nil, err
	}
	return dto.toDomain(), nil
}

// GetForumModerators возвращает модераторов настроенного форума.
func (c *Client) GetForumModerators(ctx context.Context) ([]*domain.User, error) {
	params := url.Values{"forum": {c.cfg.Forum}}
	var dtos []moderatorDTO
	if err := c.get(ctx, "get_forum_moderators", "forums/listModerators", params, &dtos); err != nil {
		return nil, err
	}
	users := make([]*domain.User, 0, len(dtos))
	for i := range dtos {
		users = append(users, dtos[i].User.toDomain())
	}
	return users, nil
}

// ListFollowing возвращает пользователей, на которых подписан userID.
func (c *Client) ListFollowing(ctx context.Context, userID string) ([]*domain.User, error) {
	params := url.Values{"user": {userID}}
	var dtos []userDTO
	if err := c.get(ctx, "list_following", "users/listFollowing", params, &dtos); err != nil {
		return nil, err
	}
	users := make([]*domain.User, 0, len(dtos))
	for i := range dtos {
		users = append(users, dtos[i].toDomain())
	}
	return users, nil
}

// IsUserFollowing сообщает, подписан ли текущий пользователь на userID.
// Для анонима всегда false.
func (c *Client) IsUserFollowing(ctx context.Context, userID string) (bool, error) {
	session := c.currentSession()
	if !session.Authenticated() {
		return false, nil
	}
	following, err := c.ListFollowing(ctx, session.UserID)
	if err != nil {
		return false, err
	}
	for _, user := range following {
		if user.ID == userID {
			return true, nil
		}
	}
	return false, nil
}

// ResolveOrCreateThread ищет тред по составному идентификатору среди тредов
// настроенного форума и создаёт новый, если совпадения нет.
//
// Между проверкой и созданием нет блокировки: два одновременных первых
// посещения страницы могут создать тред дважды, Disqus дубликаты не
// схлопывает.
func (c *Client) ResolveOrCreateThread(ctx context.Context, identifier, title, pageURL string, pageID int) (string, error) {
	params := url.Values{"forum": {c.cfg.Forum}}
	var dtos []threadDTO
	if err := c.get(ctx, "list_threads", "forums/listThreads", params, &dtos); err != nil {
		return "", err
	}

	want := domain.ThreadIdentifier(identifier, pageID)
	for i := range dtos {
		if len(dtos[i].Identifiers) > 0 && dtos[i].Identifiers[0] == want {
			return string(dtos[i].ID), nil
		}
	}

	thread, err := c.CreateThread(ctx, identifier, title, pageURL, pageID)
	if err != nil {
		return "", err
	}
	return thread.ID, nil
}

// CreateThread создаёт тред с составным идентификатором.
func (c *Client) CreateThread(ctx context.Context, identifier, title, pageURL string, pageID int) (*domain.Thread, error) {
	data := url.Values{
		"forum":      {c.cfg.Forum},
		"title":      {title},
		"identifier": {domain.ThreadIdentifier(identifier, pageID)},
	}
	if pageURL != "" {
		data.Set("url", pageURL)
	}
	var dto threadDTO
	if err := c.post(ctx, "create_thread", "threads/create", data, &dto); err != nil {
		return nil, err
	}
	return dto.toDomain(), nil
}

// CreatePost публикует комментарий. Пустой parentID означает корневой
// комментарий, нулевой rating не передаётся.
func (c *Client) CreatePost(ctx context.Context, message, threadID, parentID string, rating int) (*domain.Post, error) {
	data := url.Values{
		"message": {message},
		"thread":  {threadID},
	}
	if parentID != "" {
		data.Set("parent", parentID)
	}
	if rating != 0 {
		data.Set("rating", strconv.Itoa(rating))
	}
	var dto postDTO
	if err := c.post(ctx, "create_post", "posts/create", data, &dto); err != nil {
		return nil, err
	}
	return dto.toDomain(), nil
}

// UpdatePost изменяет текст комментария и, опционально, оценку треда.
func (c *Client) UpdatePost(ctx context.Context, postID, message string, rating int) (*domain.Post, error) {
	data := url.Values{
		"post":    {postID},
		"message": {message},
	}
	if rating != 0 {
		data.Set("rating", strconv.Itoa(rating))
	}
	var dto postDTO
	if err := c.post(ctx, "update_post", "posts/update", data, &dto); err != nil {
		return nil, err
	}
	return dto.toDomain(), nil
}

// DeletePost удаляет комментарий.
func (c *Client) DeletePost(ctx context.Context, postID string) error {
	data := url.Values{"post": {postID}}
	return c.post(ctx, "delete_post", "posts/remove", data, nil)
}

// SubmitPostVote голосует за комментарий (vote — 1 или -1). Если Disqus
// не засчитал голос (delta == 0), возвращается domain.ErrVoteRejected
// вместе с результатом.
func (c *Client) SubmitPostVote(ctx context.Context, postID string, vote int) (domain.VoteResult, error) {
	data := url.Values{
		"post": {postID},
		"vote": {strconv.Itoa(vote)},
	}
	var dto voteDTO
	if err := c.post(ctx, "vote_post", "posts/vote", data, &dto); err != nil {
		return domain.VoteResult{}, err
	}
	result := domain.VoteResult{Vote: dto.Vote, Delta: dto.Delta}
	if dto.Post != nil {
		result.Likes = dto.Post.Likes
		result.Dislikes = dto.Post.Dislikes
	}
	if result.Delta == 0 {
		return result, domain.ErrVoteRejected
	}
	return result, nil
}

// SubmitThreadVote голосует за тред (vote — 1 или -1).
func (c *Client) SubmitThreadVote(ctx context.Context, threadID string, vote int) (domain.VoteResult, error) {
	data := url.Values{
		"thread": {threadID},
		"vote":   {strconv.Itoa(vote)},
	}
	var dto voteDTO
	if err := c.post(ctx, "vote_thread", "threads/vote", data, &dto); err != nil {
		return domain.VoteResult{}, err
	}
	result := domain.VoteResult{Vote: dto.Vote, Delta: dto.Delta}
	if dto.Thread != nil {
		result.Likes = dto.Thread.Likes
		result.Dislikes = dto.Thread.Dislikes
	}
	if result.Delta == 0 {
		return result, domain.ErrVoteRejected
	}
	return result, nil
}

// ReportPost отправляет жалобу на комментарий.
func (c *Client) ReportPost(ctx context.Context, postID string, reason domain.ReportReason) error {
	data := url.Values{
		"post":   {postID},
		"reason": {strconv.Itoa(int(reason))},
	}
	return c.post(ctx, "report_post", "posts/report", data, nil)
}

// FollowUser подписывает текущего пользователя на userID или отписывает его.
func (c *Client) FollowUser(ctx context.Context, userID string, doFollow bool) error {
	resource := "users/follow"
	operation := "follow_user"
	if !doFollow {
		resource = "users/unfollow"
		operation = "unfollow_user"
	}
	data := url.Values{"target": {userID}}
	return c.post(ctx, operation, resource, data, nil)
}

// SubscribeToThread подписывает текущего пользователя на тред или отписывает его.
func (c *Client) SubscribeToThread(ctx context.Context, threadID string, doSubscribe bool) error {
	resource := "threads/subscribe"
	operation := "subscribe_thread"
	if !doSubscribe {
		resource = "threads/unsubscribe"
		operation = "unsubscribe_thread"
	}
	data := url.Values{"thread": {threadID}}
	return c.post(ctx, operation, resource, data, nil)
}

// CloseThread закрывает тред для новых комментариев.
func (c *Client) CloseThread(ctx context.Context, threadID string) error {
	data := url.Values{"thread": {threadID}}
	return c.post(ctx, "close_thread", "threads/close", data, nil)
}

// get выполняет GET запрос. К параметрам добавляется api_key и,
// для аутентифицированного пользователя, access_token.
func (c *Client) get(ctx context.Context, operation, resource string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	if session := c.currentSession(); session.Authenticated() {
		params.Set("access_token", session.AccessToken)
	}
	params.Set("api_key", c.cfg.APIKey)

	endpoint := fmt.Sprintf("%s/%s.json?%s", strings.TrimRight(c.cfg.BaseURL, "/"), resource, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("построение запроса: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, operation, out)
}

// post выполняет POST запрос с form-encoded телом. К данным добавляется
// api_secret и, для аутентифицированного пользователя, access_token.
func (c *Client) post(ctx context.Context, operation, resource string, data url.Values, out any) error {
	if data == nil {
		data = url.Values{}
	}
	if session := c.currentSession(); session.Authenticated() {
		data.Set("access_token", session.AccessToken)
	}
	data.Set("api_secret", c.cfg.APISecret)

	endpoint := fmt.Sprintf("%s/%s.json", strings.TrimRight(c.cfg.BaseURL, "/"), resource)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("построение запроса: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, operation, out)
}

// do отправляет запрос, разбирает конверт ответа и приводит ошибки
// к типизированному виду. out может быть nil, если тело не нужно.
func (c *Client) do(req *http.Request, operation string, out any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveNetworkRequest("disqus", operation, start, err)
	if err != nil {
		return fmt.Errorf("выполнение запроса: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("чтение ответа: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if env.Code != 0 {
		var message string
		// в конверте ошибки response — строка с сообщением сервера
		_ = json.Unmarshal(env.Response, &message)
		metrics.APIErrorsTotal.WithLabelValues(strconv.Itoa(env.Code)).Inc()
		return &domain.APIError{Code: domain.ErrorCode(env.Code), Message: message}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Response, out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	return nil
}
