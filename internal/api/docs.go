package api

import (
	"encoding/json"
	"net/http"
	"path"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"
)

const apiVersion = "1.0"

// routeDoc serves the swagger document describing the registered routes.
type routeDoc struct {
	doc atomic.Value
}

func (d *routeDoc) ReadDoc() string {
	s, _ := d.doc.Load().(string)
	return s
}

var (
	docs         routeDoc
	registerDocs sync.Once
)

// RegisterDocs publishes a swagger document for the routes on router and
// serves the UI at /swagger/*any.
func RegisterDocs(router *gin.Engine) {
	docs.doc.Store(buildDoc(router.Routes()))
	registerDocs.Do(func() { swag.Register(swag.Name, &docs) })
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

type swaggerDoc struct {
	Swagger  string                                 `json:"swagger"`
	Info     swaggerInfo                            `json:"info"`
	BasePath string                                 `json:"basePath"`
	Paths    map[string]map[string]swaggerOperation `json:"paths"`
}

type swaggerInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

type swaggerOperation struct {
	OperationID string                     `json:"operationId"`
	Tags        []string                   `json:"tags,omitempty"`
	Parameters  []swaggerParameter         `json:"parameters,omitempty"`
	Responses   map[string]swaggerResponse `json:"responses"`
}

type swaggerParameter struct {
	Name     string `json:"name"`
	In       string `json:"in"`
	Required bool   `json:"required"`
	Type     string `json:"type"`
}

type swaggerResponse struct {
	Description string `json:"description"`
}

func buildDoc(routes gin.RoutesInfo) string {
	doc := swaggerDoc{
		Swagger: "2.0",
		Info: swaggerInfo{
			Title:       "Beacon Notify Service API",
			Description: "Push submission, message archive, mutes and preferences",
			Version:     apiVersion,
		},
		BasePath: "/",
		Paths:    make(map[string]map[string]swaggerOperation),
	}

	for _, r := range routes {
		if !strings.HasPrefix(r.Path, "/api/") {
			continue
		}
		p, params := swaggerPath(r.Path)
		op := swaggerOperation{
			OperationID: operationID(r.Handler),
			Parameters:  params,
			Responses:   map[string]swaggerResponse{"200": {Description: http.StatusText(http.StatusOK)}},
		}
		if tag := routeTag(r.Path); tag != "" {
			op.Tags = []string{tag}
		}
		if doc.Paths[p] == nil {
			doc.Paths[p] = make(map[string]swaggerOperation)
		}
		doc.Paths[p][strings.ToLower(r.Method)] = op
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// swaggerPath turns /messages/:id into /messages/{id}.
func swaggerPath(route string) (string, []swaggerParameter) {
	segments := strings.Split(route, "/")
	var params []swaggerParameter
	for i, seg := range segments {
		if strings.HasPrefix(seg, ":") || strings.HasPrefix(seg, "*") {
			name := seg[1:]
			segments[i] = "{" + name + "}"
			params = append(params, swaggerParameter{Name: name, In: "path", Required: true, Type: "string"})
		}
	}
	return strings.Join(segments, "/"), params
}

// routeTag is the first segment after the version, e.g. "messages".
func routeTag(route string) string {
	parts := strings.Split(strings.TrimPrefix(route, "/api/v1/"), "/")
	return parts[0]
}

func operationID(handler string) string {
	name := strings.TrimPrefix(path.Ext(handler), ".")
	if name == "" {
		name = handler
	}
	return strings.TrimSuffix(name, "-fm")
}
