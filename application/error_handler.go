package application

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vendaops/console/pkg/rest"
)

func (a *Application) CustomErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	// Serialize ApiErr as-is so validation causes reach the client.
	if apiErr, ok := err.(*rest.ApiErr); ok {
		log.Printf("code: %v, message: %s, causes: %v", apiErr.Code, apiErr.Message, apiErr.Causes)
		c.JSON(apiErr.Code, apiErr)
		return
	}

	if he, ok := err.(*echo.HTTPError); ok {
		message := http.StatusText(he.Code)
		if msg, ok := he.Message.(string); ok {
			message = msg
		}
		log.Printf("code: %v, message: %s", he.Code, message)
		c.JSON(he.Code, &rest.ApiErr{
			Message: message,
			Err:     http.StatusText(he.Code),
			Code:    he.Code,
		})
		return
	}

	c.Logger().Error(err)
	c.JSON(http.StatusInternalServerError, &rest.ApiErr{
		Message: "Erro interno do servidor",
		Err:     http.StatusText(http.StatusInternalServerError),
		Code:    http.StatusInternalServerError,
	})
}
