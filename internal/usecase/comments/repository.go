package comments

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"disqus-widget/internal/domain"
	"disqus-widget/internal/infra/metrics"
)

// maxNestingLevel ограничивает глубину обхода дерева ответов на случай
// некорректной циклической parent-ссылки в данных API.
const maxNestingLevel = 25

// Repository — кэширующий фасад над Disqus API. Держит комментарии,
// треды, пользователей и форумы в памяти процесса и единственный
// собирает из плоского списка комментариев дерево ответов.
//
// Repository не потокобезопасен: экземпляр рассчитан на одного
// логического владельца (запрос или одиночный сервис).
type Repository struct {
	api     domain.CommentsAPI
	session domain.SessionSource
	forumID string
	log     zerolog.Logger

	threads    []*domain.Thread
	posts      []*domain.Post
	users      []*domain.User
	forums     []*domain.Forum
	moderators []*domain.User
}

// NewRepository создаёт репозиторий поверх клиента Disqus API.
func NewRepository(api domain.CommentsAPI, session domain.SessionSource, forumID string, logger zerolog.Logger) *Repository {
	return &Repository{
		api:     api,
		session: session,
		forumID: forumID,
		log:     logger,
	}
}

// GetForum возвращает форум из кэша или из API. nil без ошибки означает,
// что данные недоступны (ошибка API уже записана в лог).
func (r *Repository) GetForum(ctx context.Context, forumID string, useCache bool) (*domain.Forum, error) {
	if useCache {
		for _, forum := range r.forums {
			if forum.ID == forumID {
				metrics.CacheHit("forum")
				return forum, nil
			}
		}
		metrics.CacheMiss("forum")
	}

	forum, err := r.api.GetForum(ctx, forumID)
	if err != nil {
		return nil, r.degradeRead("GetForum", err)
	}
	r.addForumCache(forum)
	return forum, nil
}

// GetThread возвращает тред из кэша или из API.
func (r *Repository) GetThread(ctx context.Context, threadID string, useCache bool) (*domain.Thread, error) {
	if useCache {
		for _, thread := range r.threads {
			if thread.ID == threadID {
				metrics.CacheHit("thread")
				return thread, nil
			}
		}
		metrics.CacheMiss("thread")
	}

	thread, err := r.api.GetThread(ctx, threadID)
	if err != nil {
		return nil, r.degradeRead("GetThread", err)
	}
	r.addThreadCache(thread)
	return thread, nil
}

// GetUser возвращает пользователя из кэша или из API.
func (r *Repository) GetUser(ctx context.Context, userID string, useCache bool) (*domain.User, error) {
	if useCache {
		for _, user := range r.users {
			if user.ID == userID {
				metrics.CacheHit("user")
				return user, nil
			}
		}
		metrics.CacheMiss("user")
	}

	user, err := r.api.GetUserDetails(ctx, userID)
	if err != nil {
		return nil, r.degradeRead("GetUser", err)
	}
	r.addUserCache(user)
	return user, nil
}

// GetPost возвращает комментарий из кэша; сеть не используется.
func (r *Repository) GetPost(postID string) *domain.Post {
	for _, post := range r.posts {
		if post.ID == postID {
			return post
		}
	}
	return nil
}

// GetAllPosts возвращает комментарии треда. С useCache отдаётся
// содержимое кэша без гарантированного порядка; без useCache плоский
// список запрашивается у API, индексируется и возвращается в порядке
// отрисовки (обход дерева в глубину с сортировкой соседей).
func (r *Repository) GetAllPosts(ctx context.Context, threadID string, useCache bool) ([]*domain.Post, error) {
	if useCache {
		var threadPosts []*domain.Post
		for _, post := range r.posts {
			if post.Thread == threadID {
				threadPosts = append(threadPosts, post)
			}
		}
		return threadPosts, nil
	}

	fetched, err := r.api.GetThreadPosts(ctx, threadID)
	if err != nil {
		return nil, r.degradeRead("GetAllPosts", err)
	}

	thread, err := r.GetThread(ctx, threadID, true)
	if err != nil {
		return nil, err
	}
	for _, post := range fetched {
		post.ThreadRef = thread
		r.AddPostCache(post)
	}

	topLevel, err := r.GetTopLevelPosts(ctx, threadID, true)
	if err != nil {
		return nil, err
	}
	ordered := make([]*domain.Post, 0, len(fetched))
	for _, post := range topLevel {
		post.NestingLevel = 0
		ordered = append(ordered, post)
		ordered = append(ordered, r.collectSubtree(ctx, post, 1)...)
	}
	return ordered, nil
}

// GetTopLevelPosts возвращает корневые комментарии треда, отсортированные
// согласно настройке форума.
func (r *Repository) GetTopLevelPosts(ctx context.Context, threadID string, useCache bool) ([]*domain.Post, error) {
	threadPosts, err := r.GetAllPosts(ctx, threadID, useCache)
	if err != nil {
		return nil, err
	}
	var topLevel []*domain.Post
	for _, post := range threadPosts {
		if post.IsTopLevel() {
			topLevel = append(topLevel, post)
		}
	}
	r.sortPosts(ctx, topLevel)
	return topLevel, nil
}

// collectSubtree собирает поддерево комментария в порядке отрисовки,
// выставляя каждому потомку уровень вложенности.
func (r *Repository) collectSubtree(ctx context.Context, post *domain.Post, level int) []*domain.Post {
	if level > maxNestingLevel {
		r.log.Error().Str("post", post.ID).Msg("превышена максимальная глубина вложенности, обход остановлен")
		return nil
	}
	var subtree []*domain.Post
	for _, child := range r.directChildren(ctx, post.ID) {
		child.NestingLevel = level
		subtree = append(subtree, child)
		subtree = append(subtree, r.collectSubtree(ctx, child, level+1)...)
	}
	return subtree
}

// directChildren возвращает прямых потомков комментария из кэша,
// отсортированных согласно настройке форума.
func (r *Repository) directChildren(ctx context.Context, postID string) []*domain.Post {
	var children []*domain.Post
	for _, post := range r.posts {
		if post.Parent == postID {
			children = append(children, post)
		}
	}
	r.sortPosts(ctx, children)
	return children
}

// GetAllChildren возвращает всех потомков комментария на любой глубине.
// Используется, чтобы знать, какие узлы убирать из представления при
// удалении комментария.
func (r *Repository) GetAllChildren(ctx context.Context, postID string) []*domain.Post {
	return r.collectDescendants(ctx, postID, 0)
}

func (r *Repository) collectDescendants(ctx context.Context, postID string, depth int) []*domain.Post {
	if depth > maxNestingLevel {
		r.log.Error().Str("post", postID).Msg("превышена максимальная глубина вложенности, обход остановлен")
		return nil
	}
	direct := r.directChildren(ctx, postID)
	descendants := make([]*domain.Post, 0, len(direct))
	descendants = append(descendants, direct...)
	for _, child := range direct {
		descendants = append(descendants, r.collectDescendants(ctx, child.ID, depth+1)...)
	}
	return descendants
}

// sortPosts сортирует соседние комментарии согласно настройке форума.
// Сортировка стабильная: при равенстве сохраняется порядок ответа API.
func (r *Repository) sortPosts(ctx context.Context, posts []*domain.Post) {
	method := domain.SortNewest
	if forum, err := r.GetForum(ctx, r.forumID, true); err == nil && forum != nil {
		method = forum.Sort
	}

	switch method {
	case domain.SortHot:
		sort.SliceStable(posts, func(i, j int) bool {
			return posts[i].Likes > posts[j].Likes
		})
	case domain.SortNewest:
		sort.SliceStable(posts, func(i, j int) bool {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		})
	case domain.SortOldest:
		sort.SliceStable(posts, func(i, j int) bool {
			return posts[i].CreatedAt.Before(posts[j].CreatedAt)
		})
	}
}

// AddPostCache кладёт комментарий в кэш, заменяя запись с тем же ID.
func (r *Repository) AddPostCache(post *domain.Post) {
	r.RemovePostCache(post.ID)
	r.posts = append(r.posts, post)
}

// RemovePostCache удаляет комментарий из кэша; отсутствие записи не ошибка.
func (r *Repository) RemovePostCache(postID string) {
	for i, post := range r.posts {
		if post.ID == postID {
			r.posts = append(r.posts[:i], r.posts[i+1:]...)
			return
		}
	}
}

// UpdatePostCache применяет локальное изменение к закэшированному
// комментарию после подтверждённой записи в API, чтобы перерисовать
// виджет без повторного запроса. Возвращает false, если комментария
// нет в кэше.
func (r *Repository) UpdatePostCache(postID string, patch domain.PostPatch) bool {
	post := r.GetPost(postID)
	if post == nil {
		return false
	}

	switch p := patch.(type) {
	case domain.VotePatch:
		post.Likes = p.Likes
		post.Dislikes = p.Dislikes
		return true
	case domain.EditPatch:
		post.Message = p.Message
		raw := p.RawMessage
		if raw == "" {
			raw = p.Message
		}
		post.RawMessage = raw
		post.IsEdited = true
		if p.Rating != 0 && post.Author != nil {
			post.Author.ThreadRating = p.Rating
		}
		return true
	}
	return false
}

// GetDistinctAuthors возвращает по одному автору на каждого пользователя,
// оставившего неудалённый комментарий в треде. При повторах берётся
// первый встреченный.
func (r *Repository) GetDistinctAuthors(ctx context.Context, threadID string) ([]*domain.User, error) {
	threadPosts, err := r.GetAllPosts(ctx, threadID, true)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var authors []*domain.User
	for _, post := range threadPosts {
		if post.IsDeleted || post.Author == nil || seen[post.Author.ID] {
			continue
		}
		seen[post.Author.ID] = true
		authors = append(authors, post.Author)
	}
	return authors, nil
}

// GetThreadNumberRatings возвращает число авторов треда, выставивших оценку.
func (r *Repository) GetThreadNumberRatings(ctx context.Context, threadID string) (int, error) {
	authors, err := r.GetDistinctAuthors(ctx, threadID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, author := range authors {
		if author.ThreadRating > 0 {
			count++
		}
	}
	return count, nil
}

// GetThreadAverageRating возвращает среднюю оценку треда среди авторов,
// выставивших оценку; 0, если оценок нет.
func (r *Repository) GetThreadAverageRating(ctx context.Context, threadID string) (float64, error) {
	numberOfRatings, err := r.GetThreadNumberRatings(ctx, threadID)
	if err != nil {
		return 0, err
	}
	if numberOfRatings == 0 {
		return 0, nil
	}
	authors, err := r.GetDistinctAuthors(ctx, threadID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, author := range authors {
		total += author.ThreadRating
	}
	return float64(total) / float64(numberOfRatings), nil
}

// GetCurrentUser возвращает профиль текущего пользователя;
// nil для анонима.
func (r *Repository) GetCurrentUser(ctx context.Context) (*domain.User, error) {
	session := r.currentSession()
	if !session.Authenticated() {
		return nil, nil
	}
	return r.GetUser(ctx, session.UserID, true)
}

// GetCurrentUserThreadRating возвращает оценку, которую текущий
// пользователь выставил треду; 0 для анонима и для пользователя,
// не оставлявшего комментариев в треде.
func (r *Repository) GetCurrentUserThreadRating(ctx context.Context, threadID string) (int, error) {
	session := r.currentSession()
	if !session.Authenticated() {
		return 0, nil
	}
	authors, err := r.GetDistinctAuthors(ctx, threadID)
	if err != nil {
		return 0, err
	}
	for _, author := range authors {
		if author.ID == session.UserID {
			return author.ThreadRating, nil
		}
	}
	return 0, nil
}

// IsModerator сообщает, может ли пользователь модерировать настроенный
// форум. Список модераторов запрашивается лениво и кэшируется.
func (r *Repository) IsModerator(ctx context.Context, userID string) (bool, error) {
	if len(r.moderators) == 0 {
		moderators, err := r.api.GetForumModerators(ctx)
		if err != nil {
			return false, r.degradeRead("IsModerator", err)
		}
		r.moderators = append(r.moderators, moderators...)
	}
	for _, moderator := range r.moderators {
		if moderator.ID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *Repository) currentSession() domain.Session {
	if r.session == nil {
		return domain.Session{}
	}
	return r.session.Session()
}

func (r *Repository) addThreadCache(thread *domain.Thread) {
	for i, cached := range r.threads {
		if cached.ID == thread.ID {
			r.threads = append(r.threads[:i], r.threads[i+1:]...)
			break
		}
	}
	r.threads = append(r.threads, thread)
}

func (r *Repository) addUserCache(user *domain.User) {
	for i, cached := range r.users {
		if cached.ID == user.ID {
			r.users = append(r.users[:i], r.users[i+1:]...)
			break
		}
	}
	r.users = append(r.users, user)
}

func (r *Repository) addForumCache(forum *domain.Forum) {
	for i, cached := range r.forums {
		if cached.ID == forum.ID {
			r.forums = append(r.forums[:i], r.forums[i+1:]...)
			break
		}
	}
	r.forums = append(r.forums, forum)
}

// degradeRead переводит ошибку API на путях чтения в «данные недоступны»:
// пишет её в лог и гасит. Транспортные ошибки и ошибки разбора
// возвращаются вызывающему как есть.
func (r *Repository) degradeRead(source string, err error) error {
	if apiErr, ok := domain.AsAPIError(err); ok {
		r.log.Error().Str("source", source).Int("code", int(apiErr.Code)).Msg(apiErr.Message)
		return nil
	}
	return err
}
