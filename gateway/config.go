package gateway

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	SourceCategories = "categories"
	SourceTasks      = "tasks"

	IDFieldID         = "id"
	IDFieldDocumentID = "documentId"

	CategoryLinkID      = "id"
	CategoryLinkConnect = "connect"

	FieldNamesEnglish = "en"
	FieldNamesSpanish = "es"

	PresetDefault  = "default"
	PresetStrapi   = "strapi"
	PresetStrapiV4 = "strapi-v4"

	defaultTimeout = 10 * time.Second
)

// Endpoints lists the request paths relative to the base URL. Task holds a
// {id} placeholder.
type Endpoints struct {
	Categories string `yaml:"categories"`
	Tasks      string `yaml:"tasks"`
	CreateTask string `yaml:"create_task"`
	Task       string `yaml:"task"`
	Login      string `yaml:"login"`
	Register   string `yaml:"register"`
	Me         string `yaml:"me"`
}

// DefaultEndpoints returns the paths of a plain REST backend.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Categories: "/categories?populate=tasks",
		Tasks:      "/tasks?populate=category",
		CreateTask: "/tasks",
		Task:       "/tasks/{id}",
		Login:      "/auth/login",
		Register:   "/auth/register",
		Me:         "/users/me",
	}
}

// StrapiEndpoints returns the paths exposed by a Strapi content API.
func StrapiEndpoints() Endpoints {
	ep := DefaultEndpoints()
	ep.Login = "/auth/local"
	ep.Register = "/auth/local/register"
	return ep
}

// Config is everything the gateway needs to reach the backend. It is passed
// explicitly at construction; the gateway keeps no package level state.
type Config struct {
	BaseURL      string
	Token        string
	Timeout      time.Duration
	Source       string
	IDField      string
	Envelope     bool
	CategoryLink string
	// FieldNames selects the attribute names written in request bodies:
	// "en" (title, completed, ...) or "es" (titulo, completada, ...).
	FieldNames string
	Endpoints  Endpoints

	HTTPClient *http.Client
	Logger     *log.Logger
}

// Preset returns a Config pre-filled for the named backend flavour.
func Preset(name, baseURL string) (Config, error) {
	cfg := Config{BaseURL: baseURL}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PresetDefault:
		cfg.Endpoints = DefaultEndpoints()
	case PresetStrapi:
		cfg.Endpoints = StrapiEndpoints()
		cfg.IDField = IDFieldDocumentID
		cfg.Envelope = true
	case PresetStrapiV4:
		cfg.Endpoints = StrapiEndpoints()
		cfg.IDField = IDFieldID
		cfg.Envelope = true
		cfg.CategoryLink = CategoryLinkConnect
		cfg.FieldNames = FieldNamesSpanish
	default:
		return Config{}, errors.New("unknown backend preset " + name)
	}
	return cfg, nil
}

func (c Config) withDefaults() (Config, error) {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Config{}, errors.New("gateway: base url must be an absolute http(s) url")
	}
	c.BaseURL = base
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	switch c.Source {
	case "":
		c.Source = SourceCategories
	case SourceCategories, SourceTasks:
	default:
		return Config{}, errors.New("gateway: unknown source " + c.Source)
	}
	switch c.IDField {
	case "":
		c.IDField = IDFieldID
	case IDFieldID, IDFieldDocumentID:
	default:
		return Config{}, errors.New("gateway: unknown id field " + c.IDField)
	}
	switch c.CategoryLink {
	case "":
		c.CategoryLink = CategoryLinkID
	case CategoryLinkID, CategoryLinkConnect:
	default:
		return Config{}, errors.New("gateway: unknown category link " + c.CategoryLink)
	}
	switch c.FieldNames {
	case "":
		c.FieldNames = FieldNamesEnglish
	case FieldNamesEnglish, FieldNamesSpanish:
	default:
		return Config{}, errors.New("gateway: unknown field names " + c.FieldNames)
	}
	c.Endpoints = c.Endpoints.merge(DefaultEndpoints())
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	if c.Logger == nil {
		c.Logger = log.StandardLogger()
	}
	return c, nil
}

func (e Endpoints) merge(def Endpoints) Endpoints {
	pick := func(v, d string) string {
		if v == "" {
			return d
		}
		return v
	}
	return Endpoints{
		Categories: pick(e.Categories, def.Categories),
		Tasks:      pick(e.Tasks, def.Tasks),
		CreateTask: pick(e.CreateTask, def.CreateTask),
		Task:       pick(e.Task, def.Task),
		Login:      pick(e.Login, def.Login),
		Register:   pick(e.Register, def.Register),
		Me:         pick(e.Me, def.Me),
	}
}
