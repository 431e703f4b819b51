package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/vasiliy-maslov/forum-service/internal/forum"
	"github.com/vasiliy-maslov/forum-service/internal/user"
)

type topicCreatedResponse struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

func listCategories(ctx context.Context, svc Services, _ Request) (Response, error) {
	categories, err := svc.Forum.ListCategories(ctx)
	if err != nil {
		return Response{}, err
	}
	return JSON(http.StatusOK, categories)
}

func listTopics(ctx context.Context, svc Services, _ Request) (Response, error) {
	topics, err := svc.Forum.ListTopics(ctx)
	if err != nil {
		return Response{}, err
	}
	return JSON(http.StatusOK, topics)
}

func getUser(ctx context.Context, svc Services, req Request) (Response, error) {
	// An id that is missing or not an integer cannot match a row.
	id, parseErr := strconv.ParseInt(req.Query("id"), 10, 64)
	if parseErr != nil {
		return Error(http.StatusNotFound, "User not found"), nil
	}

	u, err := svc.Users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return Error(http.StatusNotFound, "User not found"), nil
		}
		return Response{}, err
	}
	return JSON(http.StatusOK, u)
}

func register(ctx context.Context, svc Services, req Request) (Response, error) {
	var in user.RegisterInput
	if err := req.DecodeBody(&in); err != nil {
		return Response{}, err
	}

	created, err := svc.Users.Register(ctx, in)
	if err != nil {
		return Response{}, err
	}
	return JSON(http.StatusOK, created)
}

func login(ctx context.Context, svc Services, req Request) (Response, error) {
	var in user.LoginInput
	if err := req.DecodeBody(&in); err != nil {
		return Response{}, err
	}

	u, err := svc.Users.Login(ctx, in)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			return Error(http.StatusUnauthorized, "Invalid credentials"), nil
		}
		return Response{}, err
	}
	return JSON(http.StatusOK, u)
}

func createTopic(ctx context.Context, svc Services, req Request) (Response, error) {
	var in forum.CreateTopicInput
	if err := req.DecodeBody(&in); err != nil {
		return Response{}, err
	}

	first, err := svc.Forum.CreateTopic(ctx, in)
	if err != nil {
		return Response{}, err
	}
	return JSON(http.StatusOK, topicCreatedResponse{ID: first.TopicID, Message: "Topic created"})
}

func createCategory(ctx context.Context, svc Services, req Request) (Response, error) {
	var in forum.CreateCategoryInput
	if err := req.DecodeBody(&in); err != nil {
		return Response{}, err
	}

	created, err := svc.Forum.CreateCategory(ctx, in)
	if err != nil {
		return Response{}, err
	}
	return JSON(http.StatusOK, created)
}

func updateUserRole(ctx context.Context, svc Services, req Request) (Response, error) {
	var in user.RoleInput
	if err := req.DecodeBody(&in); err != nil {
		return Response{}, err
	}

	if err := svc.Users.UpdateRole(ctx, in); err != nil {
		return Response{}, err
	}
	return Message("Role updated")
}

func pinTopic(ctx context.Context, svc Services, req Request) (Response, error) {
	var in forum.PinInput
	if err := req.DecodeBody(&in); err != nil {
		return Response{}, err
	}

	if err := svc.Forum.SetTopicPinned(ctx, in); err != nil {
		return Response{}, err
	}
	return Message("Topic pin status updated")
}

func lockTopic(ctx context.Context, svc Services, req Request) (Response, error) {
	var in forum.LockInput
	if err := req.DecodeBody(&in); err != nil {
		return Response{}, err
	}

	if err := svc.Forum.SetTopicLocked(ctx, in); err != nil {
		return Response{}, err
	}
	return Message("Topic lock status updated")
}

func archiveTopic(ctx context.Context, svc Services, req Request) (Response, error) {
	var in forum.ArchiveInput
	if err := req.DecodeBody(&in); err != nil {
		return Response{}, err
	}

	if err := svc.Forum.ArchiveTopic(ctx, in); err != nil {
		return Response{}, err
	}
	return Message("Topic archived")
}
