package utils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// APIResponse is the envelope returned by every JSON endpoint.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
	Details interface{} `json:"details,omitempty"`
	Message string      `json:"message"`
}

// SendSuccess answers 200 with data.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return respond(c, fiber.StatusOK, APIResponse{Success: true, Data: data, Message: message})
}

// Created answers 201 with the new resource.
func Created(c *fiber.Ctx, message string, data interface{}) error {
	return respond(c, fiber.StatusCreated, APIResponse{Success: true, Data: data, Message: message})
}

// OK answers 200 with data plus pagination or summary metadata.
func OK(c *fiber.Ctx, data interface{}, message string, meta interface{}) error {
	return respond(c, fiber.StatusOK, APIResponse{Success: true, Data: data, Meta: meta, Message: message})
}

// SendError answers status with a bare message.
func SendError(c *fiber.Ctx, status int, message string) error {
	return Fail(c, status, message, nil)
}

// Fail answers status with optional structured details, such as the fields
// that failed validation or the states of a rejected transition.
func Fail(c *fiber.Ctx, status int, message string, details interface{}) error {
	if message == "" {
		message = "error"
	}
	return respond(c, status, APIResponse{Details: details, Message: message})
}

// ErrorHandler renders errors escaping the handlers, including fiber's own
// 404/405/413 and guard rejections, in the same envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "internal server error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status = fiberErr.Code
		message = fiberErr.Message
	}
	return Fail(c, status, message, nil)
}

func respond(c *fiber.Ctx, status int, body APIResponse) error {
	if status == 0 {
		status = fiber.StatusOK
	}
	if body.Success && body.Message == "" {
		body.Message = "success"
	}
	return c.Status(status).JSON(body)
}
