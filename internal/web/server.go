package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/bookingd/internal/auth"
	"github.com/example/bookingd/internal/db"
	"github.com/example/bookingd/internal/reservations"
	"github.com/example/bookingd/internal/schedule"
)

//go:embed templates/*.html static/*
var fs embed.FS

// formTimeLayout matches <input type="datetime-local">.
const formTimeLayout = "2006-01-02T15:04"

type Server struct {
	Auth      *auth.Store
	Repo      *reservations.Repo
	Booker    *reservations.Booker
	Validator *schedule.Validator

	BaseURL string
}

type slotView struct {
	Start     time.Time
	End       time.Time
	Available bool
	BookURL   string
}

type tmplData struct {
	Title string
	User  int64
	Flash string

	Reservations []reservations.Reservation
	Reservation  reservations.Reservation
	StartValue   string
	EndValue     string

	Date     time.Time
	PrevDate string
	NextDate string
	Slots    []slotView
	Closed   bool
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
	mux.HandleFunc("/register", s.handleRegister)

	mux.Handle("/{$}", s.Auth.RequireAuth(http.HandlerFunc(s.handleIndex)))
	mux.Handle("/reservations/new", s.Auth.RequireAuth(http.HandlerFunc(s.handleNew)))
	mux.Handle("/reservations/create", s.Auth.RequireAuth(http.HandlerFunc(s.handleCreate)))
	mux.Handle("/reservations/{id}", s.Auth.RequireAuth(http.HandlerFunc(s.handleShow)))
	mux.Handle("/reservations/{id}/edit", s.Auth.RequireAuth(http.HandlerFunc(s.handleEdit)))
	mux.Handle("/reservations/{id}/delete", s.Auth.RequireAuth(http.HandlerFunc(s.handleDelete)))
	mux.Handle("/calendar/{date}", s.Auth.RequireAuth(http.HandlerFunc(s.handleCalendar)))

	return mux
}

func (s *Server) loc() *time.Location {
	if l := s.Validator.Calendar.Location; l != nil {
		return l
	}
	return time.Local
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	list, err := s.Repo.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.render(w, "templates/reservations.html", tmplData{
		Title:        "Reservations",
		User:         uid,
		Flash:        r.URL.Query().Get("flash"),
		Reservations: list,
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
		password := r.FormValue("password")
		id, err := s.Auth.Authenticate(r.Context(), username, password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				s.render(w, "templates/login.html", tmplData{Title: "Login", Flash: "Invalid username/password"})
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
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

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, "templates/register.html", tmplData{Title: "Register"})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		username := strings.TrimSpace(r.FormValue("username"))
		password := r.FormValue("password")
		if username == "" || len(password) < 8 {
			s.render(w, "templates/register.html", tmplData{Title: "Register", Flash: "Username required; password must be at least 8 characters"})
			return
		}
		id, err := s.Auth.CreateUser(r.Context(), username, password)
		if err != nil {
			log.Printf("register %q: %v", username, err)
			s.render(w, "templates/register.html", tmplData{Title: "Register", Flash: "Could not create account (username taken?)"})
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

func (s *Server) handleNew(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	// Pre-fill start/end when arriving from a calendar slot link.
	data := tmplData{Title: "New Reservation", User: uid}
	if v := r.URL.Query().Get("start"); v != "" {
		if t, err := time.ParseInLocation(formTimeLayout, v, s.loc()); err == nil {
			data.StartValue = t.Format(formTimeLayout)
		}
	}
	if v := r.URL.Query().Get("end"); v != "" {
		if t, err := time.ParseInLocation(formTimeLayout, v, s.loc()); err == nil {
			data.EndValue = t.Format(formTimeLayout)
		}
	}
	s.render(w, "templates/new_reservation.html", data)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	res, data, ok := s.parseReservationForm(r)
	data.Title = "New Reservation"
	data.User = uid
	if !ok {
		s.render(w, "templates/new_reservation.html", data)
		return
	}

	if _, err := s.Booker.Book(r.Context(), res); err != nil {
		if re := schedule.AsRuleError(err); re != nil {
			data.Flash = re.Message
			s.render(w, "templates/new_reservation.html", data)
			return
		}
		log.Printf("create reservation: %v", err)
		http.Error(w, "could not save reservation", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/?flash="+url.QueryEscape("Reservation created"), http.StatusSeeOther)
}

func (s *Server) handleShow(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	res, ok := s.reservationFromPath(w, r)
	if !ok {
		return
	}
	s.render(w, "templates/show_reservation.html", tmplData{
		Title:       fmt.Sprintf("Reservation #%d", res.ID),
		User:        uid,
		Reservation: res,
	})
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	res, ok := s.reservationFromPath(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.render(w, "templates/edit_reservation.html", tmplData{
			Title:       fmt.Sprintf("Edit Reservation #%d", res.ID),
			User:        uid,
			Reservation: res,
			StartValue:  res.StartAt.In(s.loc()).Format(formTimeLayout),
			EndValue:    res.EndAt.In(s.loc()).Format(formTimeLayout),
		})
	case http.MethodPost:
		updated, data, okForm := s.parseReservationForm(r)
		data.Title = fmt.Sprintf("Edit Reservation #%d", res.ID)
		data.User = uid
		data.Reservation.ID = res.ID
		if !okForm {
			s.render(w, "templates/edit_reservation.html", data)
			return
		}
		updated.ID = res.ID

		if err := s.Booker.Rebook(r.Context(), updated); err != nil {
			if re := schedule.AsRuleError(err); re != nil {
				data.Flash = re.Message
				s.render(w, "templates/edit_reservation.html", data)
				return
			}
			log.Printf("update reservation %d: %v", res.ID, err)
			http.Error(w, "could not save reservation", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/?flash="+url.QueryEscape("Reservation updated"), http.StatusSeeOther)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	res, ok := s.reservationFromPath(w, r)
	if !ok {
		return
	}
	if err := s.Repo.Delete(r.Context(), res.ID); err != nil {
		log.Printf("delete reservation %d: %v", res.ID, err)
		http.Error(w, "could not delete reservation", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/?flash="+url.QueryEscape("Reservation deleted"), http.StatusSeeOther)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	day, err := time.ParseInLocation("2006-01-02", r.PathValue("date"), s.loc())
	if err != nil {
		http.NotFound(w, r)
		return
	}

	slots, err := s.Validator.DaySlots(r.Context(), day)
	if err != nil {
		log.Printf("day slots %s: %v", day.Format("2006-01-02"), err)
		http.Error(w, "could not load calendar", http.StatusInternalServerError)
		return
	}

	views := make([]slotView, 0, len(slots))
	for _, sl := range slots {
		v := slotView{
			Start:     sl.Range.Start,
			End:       sl.Range.End,
			Available: sl.Available,
		}
		if sl.Available {
			q := url.Values{}
			q.Set("start", sl.Range.Start.Format(formTimeLayout))
			q.Set("end", sl.Range.End.Format(formTimeLayout))
			v.BookURL = "/reservations/new?" + q.Encode()
		}
		views = append(views, v)
	}

	s.render(w, "templates/calendar.html", tmplData{
		Title:    "Calendar " + day.Format("2006-01-02"),
		User:     uid,
		Date:     day,
		PrevDate: day.AddDate(0, 0, -1).Format("2006-01-02"),
		NextDate: day.AddDate(0, 0, 1).Format("2006-01-02"),
		Slots:    views,
		Closed:   len(views) == 0,
	})
}

// parseReservationForm reads the shared create/edit form. On failure the
// returned tmplData carries the flash message and the submitted values so
// the form re-renders filled in.
func (s *Server) parseReservationForm(r *http.Request) (reservations.Reservation, tmplData, bool) {
	data := tmplData{}
	if err := r.ParseForm(); err != nil {
		data.Flash = "Invalid form submission"
		return reservations.Reservation{}, data, false
	}

	name := strings.TrimSpace(r.FormValue("customer_name"))
	startStr := strings.TrimSpace(r.FormValue("start_at"))
	endStr := strings.TrimSpace(r.FormValue("end_at"))
	data.Reservation.CustomerName = name
	data.StartValue = startStr
	data.EndValue = endStr

	if name == "" {
		data.Flash = "Customer name is required"
		return reservations.Reservation{}, data, false
	}
	start, err := time.ParseInLocation(formTimeLayout, startStr, s.loc())
	if err != nil {
		data.Flash = "Invalid start time"
		return reservations.Reservation{}, data, false
	}
	end, err := time.ParseInLocation(formTimeLayout, endStr, s.loc())
	if err != nil {
		data.Flash = "Invalid end time"
		return reservations.Reservation{}, data, false
	}

	return reservations.Reservation{CustomerName: name, StartAt: start, EndAt: end}, data, true
}

func (s *Server) reservationFromPath(w http.ResponseWriter, r *http.Request) (reservations.Reservation, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return reservations.Reservation{}, false
	}
	res, err := s.Repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.NotFound(w, r)
			return reservations.Reservation{}, false
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return reservations.Reservation{}, false
	}
	return res, true
}

func (s *Server) render(w http.ResponseWriter, name string, data tmplData) {
	t, err := template.ParseFS(fs,
		"templates/base.html",
		name,
	)
	if err != nil {
		http.Error(w, "template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
	}
}

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
	log.Printf("listening on %s", addr)
	return srv.ListenAndServe()
}
