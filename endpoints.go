package instakit

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// User is a provider account.
type User struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	FullName       string `json:"full_name"`
	ProfilePicture string `json:"profile_picture"`
	Bio            string `json:"bio,omitempty"`
	Website        string `json:"website,omitempty"`
	Counts         *struct {
		Media      int `json:"media"`
		Follows    int `json:"follows"`
		FollowedBy int `json:"followed_by"`
	} `json:"counts,omitempty"`
}

// Image is one rendition of a media item.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Media is a posted photo or video.
type Media struct {
	ID          string           `json:"id"`
	Type        string           `json:"type"`
	Link        string           `json:"link"`
	CreatedTime string           `json:"created_time"`
	User        User             `json:"user"`
	Images      map[string]Image `json:"images,omitempty"`
	Caption     *Comment         `json:"caption,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
	Likes       struct {
		Count int `json:"count"`
	} `json:"likes"`
	Comments struct {
		Count int `json:"count"`
	} `json:"comments"`
	UserHasLiked bool `json:"user_has_liked"`
}

// Comment is a comment or caption on a media item.
type Comment struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	CreatedTime string `json:"created_time"`
	From        User   `json:"from"`
}

// Self returns the authenticated user.
func (c *Client) Self(ctx context.Context) (*User, error) {
	return c.User(ctx, "self")
}

func (c *Client) User(ctx context.Context, id string) (*User, error) {
	var u User
	if _, err := c.Do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// RecentMedia lists a user's latest media; count <= 0 uses the provider default.
func (c *Client) RecentMedia(ctx context.Context, userID string, count int) ([]Media, *Pagination, error) {
	params := url.Values{}
	if count > 0 {
		params.Set("count", strconv.Itoa(count))
	}
	var media []Media
	resp, err := c.Do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID)+"/media/recent", params, &media)
	if err != nil {
		return nil, nil, err
	}
	return media, resp.Pagination, nil
}

func (c *Client) Media(ctx context.Context, id string) (*Media, error) {
	var m Media
	if _, err := c.Do(ctx, http.MethodGet, "/media/"+url.PathEscape(id), nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) Comments(ctx context.Context, mediaID string) ([]Comment, error) {
	var comments []Comment
	if _, err := c.Do(ctx, http.MethodGet, "/media/"+url.PathEscape(mediaID)+"/comments", nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (c *Client) PostComment(ctx context.Context, mediaID, text string) error {
	_, err := c.Do(ctx, http.MethodPost, "/media/"+url.PathEscape(mediaID)+"/comments", url.Values{"text": {text}}, nil)
	return err
}

func (c *Client) DeleteComment(ctx context.Context, mediaID, commentID string) error {
	_, err := c.Do(ctx, http.MethodDelete, "/media/"+url.PathEscape(mediaID)+"/comments/"+url.PathEscape(commentID), nil, nil)
	return err
}

func (c *Client) Like(ctx context.Context, mediaID string) error {
	_, err := c.Do(ctx, http.MethodPost, "/media/"+url.PathEscape(mediaID)+"/likes", nil, nil)
	return err
}

func (c *Client) Unlike(ctx context.Context, mediaID string) error {
	_, err := c.Do(ctx, http.MethodDelete, "/media/"+url.PathEscape(mediaID)+"/likes", nil, nil)
	return err
}
