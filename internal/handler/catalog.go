package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/cocktail-catalog/internal/catalog"
)

type searchRequest struct {
	Text string `validate:"max=200"`
}

func (s *searchRequest) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key != "text" {
			return d.Skip()
		}
		v, err := d.Str()
		s.Text = v
		return err
	})
}

type categoryRequest struct {
	Category string `validate:"required,max=100"`
}

func (c *categoryRequest) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key != "category" {
			return d.Skip()
		}
		v, err := d.Str()
		c.Category = v
		return err
	})
}

type sortRequest struct {
	Sort string `validate:"required,oneof=relevance title-asc title-desc"`
}

func (s *sortRequest) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key != "sort" {
			return d.Skip()
		}
		v, err := d.Str()
		s.Sort = v
		return err
	})
}

type pageRequest struct {
	Page int `validate:"min=1"`
}

func (p *pageRequest) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key != "page" {
			return d.Skip()
		}
		v, err := d.Int()
		p.Page = v
		return err
	})
}

type selectRequest struct {
	ID string `validate:"required,max=64"`
}

func (s *selectRequest) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key != "id" {
			return d.Skip()
		}
		if d.Next() == jx.Number {
			n, err := d.Num()
			s.ID = n.String()
			return err
		}
		v, err := d.Str()
		s.ID = v
		return err
	})
}

func (h *Handler) respondView(w http.ResponseWriter, r *http.Request, ctrl *catalog.Controller) {
	h.wait(r, ctrl)
	var e jx.Encoder
	encodeSnapshot(&e, ctrl.View())
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) getCatalog(w http.ResponseWriter, r *http.Request) {
	h.respondView(w, r, controllerFrom(r.Context()))
}

func (h *Handler) setSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	ctrl := controllerFrom(r.Context())
	ctrl.SetSearchText(req.Text)
	h.respondView(w, r, ctrl)
}

func (h *Handler) setCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	ctrl := controllerFrom(r.Context())
	ctrl.SetCategory(req.Category)
	h.respondView(w, r, ctrl)
}

func (h *Handler) setSort(w http.ResponseWriter, r *http.Request) {
	var req sortRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	ctrl := controllerFrom(r.Context())
	if err := ctrl.SetSort(catalog.SortMode(req.Sort)); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondView(w, r, ctrl)
}

func (h *Handler) setPage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	ctrl := controllerFrom(r.Context())
	ctrl.SetPage(req.Page)
	h.respondView(w, r, ctrl)
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	ctrl := controllerFrom(r.Context())
	ctrl.ClearFilters()
	h.respondView(w, r, ctrl)
}

func (h *Handler) retry(w http.ResponseWriter, r *http.Request) {
	ctrl := controllerFrom(r.Context())
	ctrl.Retry()
	h.respondView(w, r, ctrl)
}

func (h *Handler) respondSelection(w http.ResponseWriter, r *http.Request, ctrl *catalog.Controller) {
	h.wait(r, ctrl)
	var e jx.Encoder
	encodeSelection(&e, ctrl.View().Selection)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) getSelection(w http.ResponseWriter, r *http.Request) {
	h.respondSelection(w, r, controllerFrom(r.Context()))
}

func (h *Handler) selectProduct(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	ctrl := controllerFrom(r.Context())
	if _, err := ctrl.Select(req.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondSelection(w, r, ctrl)
}

func (h *Handler) dismiss(w http.ResponseWriter, r *http.Request) {
	ctrl := controllerFrom(r.Context())
	ctrl.Dismiss()
	h.respondSelection(w, r, ctrl)
}

func (h *Handler) categories(w http.ResponseWriter, r *http.Request) {
	ctrl := controllerFrom(r.Context())
	h.wait(r, ctrl)

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("categories", func(e *jx.Encoder) { encodeStrings(e, ctrl.Categories()) })
	})
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) about(w http.ResponseWriter, _ *http.Request) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("name", func(e *jx.Encoder) { e.Str(h.cfg.DisplayName) })
		e.Field("id", func(e *jx.Encoder) { e.Str(h.cfg.DisplayID) })
		e.Field("name_default", func(e *jx.Encoder) { e.Bool(h.cfg.DisplayNameDefault) })
		e.Field("id_default", func(e *jx.Encoder) { e.Bool(h.cfg.DisplayIDDefault) })
	})
	writeJSON(w, http.StatusOK, &e)
}
