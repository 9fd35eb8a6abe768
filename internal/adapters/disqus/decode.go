package disqus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"disqus-widget/internal/domain"
)

// envelope — общий конверт ответа Disqus API. В успешном ответе response
// содержит полезную нагрузку, в ошибочном — строку с сообщением.
type envelope struct {
	Code     int             `json:"code"`
	Response json.RawMessage `json:"response"`
}

// flexID принимает идентификаторы и строкой, и числом: Disqus отдаёт
// id строкой, а parent — числом или null.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("идентификатор не строка и не число: %s", data)
	}
	*f = flexID(n.String())
	return nil
}

// apiTime разбирает метки времени Disqus, которые приходят без зоны.
type apiTime struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

func (t *apiTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("неизвестный формат времени: %q", s)
}

type avatarDTO struct {
	Permalink string `json:"permalink"`
	Cache     string `json:"cache"`
	Large     struct {
		Permalink string `json:"permalink"`
		Cache     string `json:"cache"`
	} `json:"large"`
}

// url выбирает лучший доступный вариант аватара и нормализует
// protocol-relative ссылки.
func (a avatarDTO) url() string {
	candidate := a.Large.Cache
	if candidate == "" {
		candidate = a.Cache
	}
	if candidate == "" {
		candidate = a.Permalink
	}
	if strings.HasPrefix(candidate, "//") {
		candidate = "https:" + candidate
	}
	return candidate
}

type userDTO struct {
	ID                 flexID    `json:"id"`
	Username           string    `json:"username"`
	Name               string    `json:"name"`
	Avatar             avatarDTO `json:"avatar"`
	ProfileURL         string    `json:"profileUrl"`
	URL                string    `json:"url"`
	NumFollowers       int       `json:"numFollowers"`
	NumFollowing       int       `json:"numFollowing"`
	NumPosts           int       `json:"numPosts"`
	NumLikesReceived   int       `json:"numLikesReceived"`
	ReputationLabel    string    `json:"reputationLabel"`
	JoinedAt           apiTime   `json:"joinedAt"`
	IsPowerContributor bool      `json:"isPowerContributor"`
	IsPrivate          bool      `json:"isPrivate"`
	IsAnonymous        bool      `json:"isAnonymous"`
	ThreadRating       int       `json:"threadRating"`
}

func (u *userDTO) toDomain() *domain.User {
	return &domain.User{
		ID:                 string(u.ID),
		UserName:           u.Username,
		Name:               u.Name,
		AvatarURL:          u.Avatar.url(),
		ProfileURL:         u.ProfileURL,
		URL:                u.URL,
		NumFollowers:       u.NumFollowers,
		NumFollowing:       u.NumFollowing,
		NumPosts:           u.NumPosts,
		NumLikesReceived:   u.NumLikesReceived,
		ReputationLabel:    u.ReputationLabel,
		JoinedAt:           u.JoinedAt.Time,
		IsPowerContributor: u.IsPowerContributor,
		IsPrivate:          u.IsPrivate,
		IsAnonymous:        u.IsAnonymous,
		ThreadRating:       u.ThreadRating,
	}
}

// moderatorDTO — элемент ответа forums/listModerators, оборачивающий пользователя.
type moderatorDTO struct {
	User userDTO `json:"user"`
}

type postDTO struct {
	ID            flexID   `json:"id"`
	Parent        flexID   `json:"parent"`
	Thread        flexID   `json:"thread"`
	Forum         string   `json:"forum"`
	Message       string   `json:"message"`
	RawMessage    string   `json:"raw_message"`
	Likes         int      `json:"likes"`
	Dislikes      int      `json:"dislikes"`
	Points        int      `json:"points"`
	NumReports    int      `json:"numReports"`
	CreatedAt     apiTime  `json:"createdAt"`
	EditableUntil apiTime  `json:"editableUntil"`
	Author        *userDTO `json:"author"`
	IsSpam        bool     `json:"isSpam"`
	IsDeleted     bool     `json:"isDeleted"`
	IsApproved    bool     `json:"isApproved"`
	IsHighlighted bool     `json:"isHighlighted"`
	IsFlagged     bool     `json:"isFlagged"`
	IsAtFlagLimit bool     `json:"isAtFlagLimit"`
	IsEdited      bool     `json:"isEdited"`
}

func (p *postDTO) toDomain() *domain.Post {
	post := &domain.Post{
		ID:            string(p.ID),
		Parent:        string(p.Parent),
		Thread:        string(p.Thread),
		Forum:         p.Forum,
		Message:       p.Message,
		RawMessage:    p.RawMessage,
		Likes:         p.Likes,
		Dislikes:      p.Dislikes,
		Points:        p.Points,
		NumReports:    p.NumReports,
		CreatedAt:     p.CreatedAt.Time,
		EditableUntil: p.EditableUntil.Time,
		IsSpam:        p.IsSpam,
		IsDeleted:     p.IsDeleted,
		IsApproved:    p.IsApproved,
		IsHighlighted: p.IsHighlighted,
		IsFlagged:     p.IsFlagged,
		IsAtFlagLimit: p.IsAtFlagLimit,
		IsEdited:      p.IsEdited,
	}
	if p.Author != nil {
		post.Author = p.Author.toDomain()
	}
	return post
}

type threadDTO struct {
	ID             flexID   `json:"id"`
	Identifiers    []string `json:"identifiers"`
	CleanTitle     string   `json:"clean_title"`
	Link           string   `json:"link"`
	Feed           string   `json:"feed"`
	Message        string   `json:"message"`
	Likes          int      `json:"likes"`
	Dislikes       int      `json:"dislikes"`
	Posts          int      `json:"posts"`
	Forum          string   `json:"forum"`
	RatingsEnabled bool     `json:"ratingsEnabled"`
	IsClosed       bool     `json:"isClosed"`
}

func (t *threadDTO) toDomain() *domain.Thread {
	return &domain.Thread{
		ID:             string(t.ID),
		Identifiers:    t.Identifiers,
		Title:          t.CleanTitle,
		Link:           t.Link,
		Feed:           t.Feed,
		Message:        t.Message,
		Likes:          t.Likes,
		Dislikes:       t.Dislikes,
		Posts:          t.Posts,
		Forum:          t.Forum,
		RatingsEnabled: t.RatingsEnabled,
		IsClosed:       t.IsClosed,
	}
}

type settingsDTO struct {
	ThreadRatingsEnabled   bool `json:"threadRatingsEnabled"`
	ThreadReactionsEnabled bool `json:"threadReactionsEnabled"`
	AllowAnonPost          bool `json:"allowAnonPost"`
	DisableSocialShare     bool `json:"disableSocialShare"`
	AdultContent           bool `json:"adultContent"`
	MediaEmbedEnabled      bool `json:"mediaembedEnabled"`
	ValidateAllPosts       bool `json:"validateAllPosts"`
}

type forumDTO struct {
	ID                 flexID      `json:"id"`
	Name               string      `json:"name"`
	Description        string      `json:"description"`
	URL                string      `json:"url"`
	Founder            flexID      `json:"founder"`
	Sort               int         `json:"sort"`
	VotingType         int         `json:"votingType"`
	DaysThreadAlive    int         `json:"daysThreadAlive"`
	ModeratorBadgeText string      `json:"moderatorBadgeText"`
	CreatedAt          apiTime     `json:"createdAt"`
	Settings           settingsDTO `json:"settings"`
}

func (f *forumDTO) toDomain() *domain.Forum {
	return &domain.Forum{
		ID:                 string(f.ID),
		Name:               f.Name,
		Description:        f.Description,
		URL:                f.URL,
		Founder:            string(f.Founder),
		Sort:               domain.SortMethod(f.Sort),
		VotingType:         f.VotingType,
		DaysThreadAlive:    f.DaysThreadAlive,
		ModeratorBadgeText: f.ModeratorBadgeText,
		CreatedAt:          f.CreatedAt.Time,
		Settings: domain.ForumSettings{
			ThreadRatingsEnabled:   f.Settings.ThreadRatingsEnabled,
			ThreadReactionsEnabled: f.Settings.ThreadReactionsEnabled,
			AllowAnonPost:          f.Settings.AllowAnonPost,
			DisableSocialShare:     f.Settings.DisableSocialShare,
			AdultContent:           f.Settings.AdultContent,
			MediaEmbedEnabled:      f.Settings.MediaEmbedEnabled,
			ValidateAllPosts:       f.Settings.ValidateAllPosts,
		},
	}
}

// voteDTO — ответ posts/vote и threads/vote. Delta == 0 означает,
// что голос не изменил счётчики.
type voteDTO struct {
	Vote   int        `json:"vote"`
	Delta  int        `json:"delta"`
	Post   *postDTO   `json:"post"`
	Thread *threadDTO `json:"thread"`
}
