package httpapi

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strconv"

	"github.com/i474232898/city-weather/internal/ui"
	"github.com/i474232898/city-weather/internal/weather"
)

//go:embed templates/*
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"num": func(f float64) string {
		return strconv.FormatFloat(f, 'f', -1, 64)
	},
}).ParseFS(templateFS, "templates/*.html"))

type locationView struct {
	ID     string
	Name   string
	Active bool
}

type panelView struct {
	Loading bool
	Loaded  bool
	Failed  bool

	Report     weather.Report
	TempSymbol string
	WindLabel  string

	ErrorMessage string
	RetryID      string
}

type pageView struct {
	Title          string
	Locations      []locationView
	Panel          panelView
	RefreshSeconds int
}

func newPanelView(loc weather.Location, st ui.State, units weather.Units) panelView {
	switch s := st.(type) {
	case ui.Loading:
		return panelView{Loading: true}
	case ui.Loaded:
		u := s.Report.Units
		if u == "" {
			u = units
		}
		return panelView{
			Loaded:     true,
			Report:     s.Report,
			TempSymbol: u.TempSymbol(),
			WindLabel:  u.WindLabel(),
		}
	case ui.Failed:
		return panelView{
			Failed:       true,
			ErrorMessage: s.Message,
			RetryID:      loc.ExternalID,
		}
	default:
		panic(fmt.Sprintf("httpapi: unhandled panel state %T", st))
	}
}

func newPageView(title string, sel *ui.Selector, units weather.Units) pageView {
	snap := sel.Snapshot()
	locs := sel.Locations()

	views := make([]locationView, 0, len(locs))
	for i, loc := range locs {
		views = append(views, locationView{ID: loc.ExternalID, Name: loc.DisplayName, Active: i == snap.Active})
	}

	return pageView{
		Title:          title,
		Locations:      views,
		Panel:          newPanelView(snap.Location, snap.State, units),
		RefreshSeconds: 1,
	}
}

func render(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
