package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// portal is a fake lk.erkc63.ru: Laravel-style login form with a
// hidden _token, a laravel_session cookie with a dashed expiry
// timestamp, account pages and the row-oriented AJAX endpoints.
type portal struct {
	srv *httptest.Server

	mu       sync.Mutex
	login    string
	password string
	token    string
	accounts []int64
	ttl      time.Duration

	// mutation handles for tests
	rejectBind   bool
	rejectUnbind bool
	brokenLogin  bool // login page without a _token field

	// canned AJAX payloads
	receipts     [][]string
	accrualRows  [][]string
	paymentRows  [][]string
	counterPages func(from, to string) [][]string
	details      map[string][][]string // month -> rows
	checkLS      map[int64]checkLSBody
	pdfFiles     map[string][]byte

	meterRows []fakeMeter

	// request counters
	loginGets    int
	loginPosts   int
	logouts      int
	bindPosts    int
	unbindPosts  int
	counterCalls []string // recorded "from->to" windows
	meterPosts   []url.Values
}

type fakeMeter struct {
	id     int64
	serial string
	date   string
	value  string
}

type checkLSBody struct {
	CheckLS      bool   `json:"checkLS"`
	Address      string `json:"address"`
	BalanceSumma string `json:"balanceSumma"`
	BalancePeni  string `json:"balancePeni"`
}

func newPortal(t *testing.T) *portal {
	p := &portal{
		login:    "user@example.com",
		password: "hunter2",
		token:    "tok-1234",
		accounts: []int64{700001, 700002},
		ttl:      time.Hour,
		details:  map[string][][]string{},
		checkLS:  map[int64]checkLSBody{},
		pdfFiles: map[string][]byte{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", p.handleLoginPage)
	mux.HandleFunc("POST /login", p.handleLoginPost)
	mux.HandleFunc("GET /logout", p.handleLogout)
	mux.HandleFunc("GET /home", p.handleHome)
	mux.HandleFunc("GET /account/{id}", p.handleAccountPage)
	mux.HandleFunc("POST /account/add", p.handleBind)
	mux.HandleFunc("POST /account/{id}/remove", p.handleUnbind)
	mux.HandleFunc("GET /account/{id}/counters", p.handleCountersPage)
	mux.HandleFunc("POST /account/{id}/counters", p.handleCountersPost)
	mux.HandleFunc("GET /counters/{id}", p.handleCountersPage)
	mux.HandleFunc("POST /counters/{id}", p.handleCountersPost)
	mux.HandleFunc("GET /ajax/{account}/{fn}", p.handleAjax)
	mux.HandleFunc("GET /payment/checkLS", p.handleCheckLS)
	mux.HandleFunc("GET /files/{name}", p.handleFile)

	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *portal) setSessionCookie(w http.ResponseWriter) {
	expires := time.Now().UTC().Add(p.ttl)
	w.Header().Add("Set-Cookie", fmt.Sprintf(
		"laravel_session=sess-abc; expires=%s; path=/",
		expires.Format("Mon, 02-Jan-2006 15:04:05 MST"),
	))
}

func (p *portal) loginPage() string {
	if p.brokenLogin {
		return `<html><body><form method="post" action="/login"></form></body></html>`
	}
	return fmt.Sprintf(
		`<html><body><form method="post" action="/login">
		<input type="hidden" name="_token" value="%s">
		<input name="login"><input name="password">
		</form></body></html>`, p.token)
}

func (p *portal) accountsPage() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var b strings.Builder
	b.WriteString(`<html><body><ul class="accounts">`)
	for _, a := range p.accounts {
		fmt.Fprintf(&b, `<li><a href="/account/%d">Лицевой счет %d</a></li>`, a, a)
	}
	b.WriteString(`</ul></body></html>`)
	return b.String()
}

func (p *portal) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.loginGets++
	p.mu.Unlock()
	p.setSessionCookie(w)
	fmt.Fprint(w, p.loginPage())
}

func (p *portal) handleLoginPost(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.loginPosts++
	p.mu.Unlock()
	if r.FormValue("_token") != p.token {
		// Laravel answers 419 to a missing or stale CSRF token
		http.Error(w, "token mismatch", 419)
		return
	}
	if r.FormValue("login") != p.login || r.FormValue("password") != p.password {
		// a rejected login re-renders the form, no redirect
		fmt.Fprint(w, p.loginPage())
		return
	}
	http.Redirect(w, r, "/home", http.StatusFound)
}

func (p *portal) handleHome(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, p.accountsPage())
}

func (p *portal) handleLogout(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.logouts++
	p.mu.Unlock()
	fmt.Fprint(w, "<html><body>bye</body></html>")
}

func (p *portal) handleAccountPage(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, `<html><body><div class="account-info">
	<span class="address">г. Самара,  ул. Ленина, д. 1</span>
	<span class="balance">1 234,56</span>
	<span class="peni">78,90</span>
	</div></body></html>`)
}

func (p *portal) handleBind(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.bindPosts++
	account, _ := strconv.ParseInt(r.FormValue("account"), 10, 64)
	if !p.rejectBind && account != 0 {
		p.accounts = append(p.accounts, account)
	}
	p.mu.Unlock()
	fmt.Fprint(w, p.accountsPage())
}

func (p *portal) handleUnbind(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.unbindPosts++
	account, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if !p.rejectUnbind {
		p.accounts = slices.DeleteFunc(p.accounts, func(a int64) bool { return a == account })
	}
	p.mu.Unlock()
	fmt.Fprint(w, p.accountsPage())
}

func (p *portal) handleCountersPage(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var b strings.Builder
	b.WriteString(`<html><body><table class="counters">`)
	for _, m := range p.meterRows {
		fmt.Fprintf(&b,
			`<tr data-counter="%d"><td class="serial">%s</td><td class="date">%s</td><td class="value">%s</td></tr>`,
			m.id, m.serial, m.date, m.value)
	}
	b.WriteString(`</table></body></html>`)
	fmt.Fprint(w, b.String())
}

func (p *portal) handleCountersPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.mu.Lock()
	p.meterPosts = append(p.meterPosts, r.PostForm)
	p.mu.Unlock()
	fmt.Fprint(w, "<html><body>ok</body></html>")
}

func (p *portal) handleAjax(w http.ResponseWriter, r *http.Request) {
	fn := r.PathValue("fn")

	var payload any
	switch fn {
	case "getReceipts":
		payload = p.receipts
	case "accrualsHistory":
		payload = p.accrualRows
	case "paymentsHistory":
		payload = p.paymentRows
	case "countersHistory":
		from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
		p.mu.Lock()
		p.counterCalls = append(p.counterCalls, from+"->"+to)
		p.mu.Unlock()
		payload = p.counterPages(from, to)
	case "accrualsDetalization":
		payload = p.details[r.URL.Query().Get("month")]
	case "getReceipt":
		name := fmt.Sprintf("%s.pdf", r.URL.Query().Get("receiptId"))
		if _, ok := p.pdfFiles[name]; !ok {
			http.NotFound(w, r)
			return
		}
		payload = map[string]string{"file": "/files/" + name}
	default:
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if payload == nil {
		payload = [][]string{}
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		panic(err)
	}
}

func (p *portal) handleCheckLS(w http.ResponseWriter, r *http.Request) {
	ls, _ := strconv.ParseInt(r.URL.Query().Get("ls"), 10, 64)
	body, ok := p.checkLS[ls]
	if !ok {
		body = checkLSBody{CheckLS: false}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		panic(err)
	}
}

func (p *portal) handleFile(w http.ResponseWriter, r *http.Request) {
	data, ok := p.pdfFiles[r.PathValue("name")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Write(data)
}

func (p *portal) counts() (loginGets, loginPosts, logouts int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loginGets, p.loginPosts, p.logouts
}

func newTestClient(t *testing.T, p *portal) *Client {
	c, err := NewClient(ClientOptions{
		BaseUrl:  p.srv.URL,
		Login:    p.login,
		Password: p.password,
		Gate:     NewAdmissionGate(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}
