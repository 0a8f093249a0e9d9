// Package web is the operator UI: a small authenticated console over the
// order store.
package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/example/visit-scheduler/internal/auth"
	"github.com/example/visit-scheduler/internal/countries"
	"github.com/example/visit-scheduler/internal/orders"
)

//go:embed templates/*.html static/*
var fs embed.FS

type Server struct {
	Auth     *auth.Store
	Orders   *orders.Repo
	Registry *countries.Registry
	Logger   *slog.Logger
}

// orderView is an order joined with its country name and the extracted visit
// date, ready for the template.
type orderView struct {
	orders.Order
	CountryName string
	VisitDate   string
	VisitTime   string
}

type tmplData struct {
	Title string
	User  int64

	Flash     string
	Orders    []orderView
	Countries []countries.Country
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/static/", http.FileServer(http.FS(fs)))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	mux.Handle("/", s.Auth.RequireAuth(http.HandlerFunc(s.handleHome)))
	mux.Handle("/orders/new", s.Auth.RequireAuth(http.HandlerFunc(s.handleOrderNew)))
	mux.Handle("/orders/create", s.Auth.RequireAuth(http.HandlerFunc(s.handleOrderCreate)))
	mux.Handle("/orders/delete", s.Auth.RequireAuth(http.HandlerFunc(s.handleOrderDelete)))

	return mux
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	list, err := s.Orders.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	views := make([]orderView, 0, len(list))
	for _, o := range list {
		v := orderView{Order: o}
		if c, err := s.Registry.Get(o.CountryID); err == nil {
			v.CountryName = c.Name
		}
		if o.Resolved() {
			if date, tm, err := orders.ExtractVisit(o.TimeForVisit); err == nil {
				v.VisitDate, v.VisitTime = date, tm
			}
		}
		views = append(views, v)
	}

	s.render(w, "templates/orders.html", tmplData{
		Title:  "Orders",
		User:   uid,
		Orders: views,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, "templates/login.html", tmplData{Title: "Login"})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		username := strings.TrimSpace(r.FormValue("username"))
		id, err := s.Auth.Authenticate(r.Context(), username, r.FormValue("password"))
		if err != nil {
			s.render(w, "templates/login.html", tmplData{Title: "Login", Flash: "Invalid username/password"})
			return
		}
		if err := s.Auth.SetSession(w, r, id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.ClearSession(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleOrderNew(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	s.render(w, "templates/new_order.html", tmplData{
		Title:     "New Order",
		User:      uid,
		Countries: s.countryList(),
	})
}

func (s *Server) handleOrderCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	orderNumber, _ := strconv.ParseInt(strings.TrimSpace(r.FormValue("order_number")), 10, 64)
	countryID, _ := strconv.Atoi(r.FormValue("country_id"))
	o := orders.Order{
		OrderNumber: orderNumber,
		SaveCode:    strings.TrimSpace(r.FormValue("save_code")),
		CountryID:   countryID,
		IfAccepted:  r.FormValue("if_accepted") == "on",
	}

	if err := o.Validate(); err != nil {
		s.renderNewOrderFlash(w, err.Error())
		return
	}
	if !s.Registry.Has(o.CountryID) {
		s.renderNewOrderFlash(w, "Unknown country")
		return
	}

	added, err := s.Orders.Add(r.Context(), o)
	if err != nil {
		s.log().Error("create order", slog.Any("error", err))
		s.renderNewOrderFlash(w, "Failed to create order")
		return
	}
	if !added {
		s.renderNewOrderFlash(w, fmt.Sprintf("Order %d already exists", o.OrderNumber))
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleOrderDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	orderNumber, err := strconv.ParseInt(r.FormValue("order_number"), 10, 64)
	if err != nil {
		http.Error(w, "bad order number", http.StatusBadRequest)
		return
	}
	if err := s.Orders.Delete(r.Context(), orderNumber); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) renderNewOrderFlash(w http.ResponseWriter, flash string) {
	s.render(w, "templates/new_order.html", tmplData{
		Title:     "New Order",
		Flash:     flash,
		Countries: s.countryList(),
	})
}

func (s *Server) countryList() []countries.Country {
	list := s.Registry.All()
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

func (s *Server) render(w http.ResponseWriter, name string, data tmplData) {
	t, err := template.ParseFS(fs, "templates/base.html", name)
	if err != nil {
		http.Error(w, "template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Start serves h until the context is cancelled, then shuts down gracefully.
func Start(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	slog.Info("web ui listening", slog.String("addr", addr))
	return srv.ListenAndServe()
}
