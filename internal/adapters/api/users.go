package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"smartcheck/internal/core/domain/models"
)

func (c *Client) ListUsers(ctx context.Context, q models.UserQuery) ([]models.User, error) {
	params := url.Values{}
	if q.Skip > 0 {
		params.Set("skip", strconv.Itoa(q.Skip))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.SearchTerm != "" {
		params.Set("search_term", q.SearchTerm)
	}
	if q.Status != "" {
		params.Set("status", string(q.Status))
	}
	if q.Role != "" {
		params.Set("role", string(q.Role))
	}
	if q.SortBy != "" {
		params.Set("sort_by", q.SortBy)
	}
	if q.SortOrder != "" {
		params.Set("sort_order", q.SortOrder)
	}

	path := "/users"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	var users []models.User
	if err := c.do(ctx, http.MethodGet, path, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) GetUser(ctx context.Context, id int64) (models.User, error) {
	var u models.User
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d", id), nil, &u)
	return u, err
}

func (c *Client) CreateUser(ctx context.Context, req models.UserCreateRequest) (models.User, error) {
	var u models.User
	err := c.do(ctx, http.MethodPost, "/users", req, &u)
	return u, err
}

func (c *Client) UpdateUser(ctx context.Context, id int64, req models.UserUpdateRequest) (models.User, error) {
	var u models.User
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/users/%d", id), req, &u)
	return u, err
}

func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/users/%d", id), nil, nil)
}
