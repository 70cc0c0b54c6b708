package mech_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tcheukueppo/WWW-Mechanize/internal/config"
	"github.com/tcheukueppo/WWW-Mechanize/internal/mech"
)

func newTestSession(t *testing.T) *mech.Session {
	t.Helper()
	return mech.NewSession(config.NewDefaultConfig(), zap.NewNop())
}

func TestSession_GetAndStateUpdate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, config.DefaultUserAgent, r.Header.Get("User-Agent"))
		fmt.Fprintln(w, `<html><head><title>Start Page</title></head><body>
			<a href="/one">One</a>
			<a href="/two">Two</a>
			<form name="search" action="/find" method="GET">
				<input type="text" name="q" value="init">
			</form>
		</body></html>`)
	}))
	defer server.Close()

	s := newTestSession(t)
	require.NoError(t, s.Get(context.Background(), server.URL+"/start"))

	assert.True(t, s.Success())
	assert.Equal(t, http.StatusOK, s.Status())
	assert.Equal(t, server.URL+"/start", s.URI().String())
	assert.Equal(t, "text/html", s.ContentType())
	assert.Equal(t, "Start Page", s.Title())
	assert.Len(t, s.Links(), 2)
	require.Len(t, s.Forms(), 1)

	// The first form is selected by default, by identity.
	assert.Same(t, s.Forms()[0], s.SelectedForm())
	assert.Equal(t, "init", s.Field("q"))
}

func TestSession_NonMarkupContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, `<a href="/looks-like-markup">but is not</a>`)
	}))
	defer server.Close()

	s := newTestSession(t)
	require.NoError(t, s.Get(context.Background(), server.URL))

	assert.True(t, s.Success())
	assert.Empty(t, s.Links())
	assert.Empty(t, s.Forms())
	assert.Nil(t, s.SelectedForm())
	assert.Empty(t, s.Title())
	assert.Contains(t, string(s.Content()), "looks-like-markup")
}

func TestSession_RefererTracksLastSuccessfulURI(t *testing.T) {
	var refererSeen string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			fmt.Fprintln(w, `<html></html>`)
		case "/broken":
			http.Error(w, "gone", http.StatusNotFound)
		case "/check":
			refererSeen = r.Header.Get("Referer")
			fmt.Fprintln(w, `<html></html>`)
		}
	}))
	defer server.Close()

	s := newTestSession(t)
	s.SetQuiet(true)

	require.NoError(t, s.Get(context.Background(), server.URL+"/ok"))

	// The failed exchange still re-derives page state...
	require.NoError(t, s.Get(context.Background(), server.URL+"/broken"))
	assert.False(t, s.Success())
	assert.Equal(t, http.StatusNotFound, s.Status())

	// ...but does not advance the Referer source.
	require.NoError(t, s.Get(context.Background(), server.URL+"/check"))
	assert.Equal(t, server.URL+"/ok", refererSeen)
}

func TestSession_RedirectDowngradesPOSTToGET(t *testing.T) {
	var finalMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/form":
			fmt.Fprintln(w, `<html><body>
				<form action="/submit" method="POST">
					<input type="hidden" name="token" value="abc">
				</form>
			</body></html>`)
		case "/submit":
			require.Equal(t, http.MethodPost, r.Method)
			http.Redirect(w, r, "/final", http.StatusFound)
		case "/final":
			finalMethod = r.Method
			fmt.Fprintln(w, `<html><title>Landed</title></html>`)
		}
	}))
	defer server.Close()

	s := newTestSession(t)
	require.NoError(t, s.Get(context.Background(), server.URL+"/form"))
	require.NoError(t, s.Submit(context.Background()))

	assert.Equal(t, http.MethodGet, finalMethod, "redirected POST must be reissued as GET")
	assert.Equal(t, server.URL+"/final", s.URI().String(), "resolved URI is the final redirect target")
	assert.Equal(t, "Landed", s.Title())
}

func TestSession_RedirectKeepsGET(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/hop":
			assert.Equal(t, http.MethodGet, r.Method)
			http.Redirect(w, r, "/final", http.StatusMovedPermanently)
		case "/final":
			assert.Equal(t, http.MethodGet, r.Method)
			fmt.Fprintln(w, `<html></html>`)
		}
	}))
	defer server.Close()

	s := newTestSession(t)
	require.NoError(t, s.Get(context.Background(), server.URL+"/hop"))
	assert.Equal(t, server.URL+"/final", s.URI().String())
}

func TestSession_MaxRedirectsExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	}))
	defer server.Close()

	s := newTestSession(t)
	err := s.Get(context.Background(), server.URL+"/loop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redirects")
}

func TestSession_FollowLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/start":
			fmt.Fprintln(w, `<html><body>
				<a href="/a">First</a>
				<a href="/b">Second</a>
				<a href="/b">Third</a>
			</body></html>`)
		default:
			fmt.Fprintf(w, `<html><title>%s</title></html>`, r.URL.Path)
		}
	}))
	defer server.Close()

	s := newTestSession(t)
	require.NoError(t, s.Get(context.Background(), server.URL+"/start"))

	require.NoError(t, s.FollowLink(context.Background(), mech.WithText("Second")))
	assert.Equal(t, server.URL+"/b", s.URI().String())
	assert.Equal(t, 1, s.HistoryDepth())

	require.True(t, s.Back())
	assert.Equal(t, server.URL+"/start", s.URI().String())
	assert.Len(t, s.Links(), 3)
	assert.Equal(t, 0, s.HistoryDepth())
}

func TestSession_BackAcrossGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><title>%s</title></html>`, r.URL.Path)
	}))
	defer server.Close()

	s := newTestSession(t)
	require.NoError(t, s.Get(context.Background(), server.URL+"/first"))
	assert.Equal(t, 0, s.HistoryDepth(), "the first fetch replaces no page and snapshots nothing")

	// A plain fetch replaces the current page, so it pushes history like any
	// other navigation.
	require.NoError(t, s.Get(context.Background(), server.URL+"/second"))
	assert.Equal(t, 1, s.HistoryDepth())
	assert.Equal(t, "/second", s.Title())

	require.True(t, s.Back())
	assert.Equal(t, server.URL+"/first", s.URI().String())
	assert.Equal(t, "/first", s.Title())
	assert.Equal(t, 0, s.HistoryDepth())
}

func TestSession_FollowLink_NoMatchHasNoSideEffects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `<html><body><a href="/a">Only</a></body></html>`)
	}))
	defer server.Close()

	s := newTestSession(t)
	s.SetQuiet(true)
	require.NoError(t, s.Get(context.Background(), server.URL))

	before := s.URI().String()
	err := s.FollowLink(context.Background(), mech.WithText("Missing"))
	assert.ErrorIs(t, err, mech.ErrLinkNotFound)
	assert.Equal(t, before, s.URI().String())
	assert.Equal(t, 0, s.HistoryDepth(), "no push occurred for a failed match")
}

func TestSession_FollowLink_RejectsAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `<html><body><a href="/a">One</a></body></html>`)
	}))
	defer server.Close()

	s := newTestSession(t)
	s.SetQuiet(true)
	require.NoError(t, s.Get(context.Background(), server.URL))

	err := s.FollowLink(context.Background(), mech.Criteria{Ordinal: mech.OrdinalAll})
	assert.ErrorIs(t, err, mech.ErrInvalidCriteria)
	assert.Equal(t, 0, s.HistoryDepth())
}

func TestSession_BackRestoresFormState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			fmt.Fprintln(w, `<html><body>
				<form action="/search" method="GET">
					<input type="text" name="q" value="init">
				</form>
			</body></html>`)
		default:
			fmt.Fprintln(w, `<html><title>Results</title></html>`)
		}
	}))
	defer server.Close()

	s := newTestSession(t)
	require.NoError(t, s.Get(context.Background(), server.URL+"/page"))

	// Mutate the selected form, then navigate away (which pushes history).
	require.NoError(t, s.SetField("q", "golang"))
	require.NoError(t, s.Submit(context.Background()))
	assert.Equal(t, "Results", s.Title())

	// Back restores the page including the mutated field value, and the
	// selected form is an element of the restored form set.
	require.True(t, s.Back())
	assert.Equal(t, server.URL+"/page", s.URI().String())
	assert.Equal(t, "golang", s.Field("q"))
	require.Len(t, s.Forms(), 1)
	assert.Same(t, s.Forms()[0], s.SelectedForm())
}

func TestSession_SnapshotIsIndependentOfLaterMutation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			fmt.Fprintln(w, `<html><body>
				<a href="/page">self</a>
				<form action="/go" method="GET"><input type="text" name="q" value="first"></form>
			</body></html>`)
		default:
			fmt.Fprintln(w, `<html></html>`)
		}
	}))
	defer server.Close()

	s := newTestSession(t)
	require.NoError(t, s.Get(context.Background(), server.URL+"/page"))

	// Follow the self link: the snapshot captures q="first"; the fresh page
	// re-parses the form, which we then mutate.
	require.NoError(t, s.FollowLink(context.Background(), mech.WithText("self")))
	require.NoError(t, s.SetField("q", "mutated"))

	require.True(t, s.Back())
	assert.Equal(t, "first", s.Field("q"), "mutation after push must not leak into the snapshot")
}

func TestSession_BackOnEmptyStack(t *testing.T) {
	s := newTestSession(t)
	s.SetQuiet(true)
	assert.False(t, s.Back())
}

func TestSession_Reload(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprintf(w, `<html><title>hit %d</title></html>`, hits)
	}))
	defer server.Close()

	s := newTestSession(t)

	err := s.Reload(context.Background())
	assert.ErrorIs(t, err, mech.ErrNoPage, "reload before any request fails")

	require.NoError(t, s.Get(context.Background(), server.URL))
	require.NoError(t, s.Reload(context.Background()))
	assert.Equal(t, 2, hits)
	assert.Equal(t, "hit 2", s.Title())
	assert.Equal(t, 0, s.HistoryDepth(), "reload does not push history")
}

func TestSession_HeadersSurviveBack(t *testing.T) {
	seen := make([]string, 0, 3)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("X-Custom"))
		fmt.Fprintln(w, `<html><body><a href="/next">Next</a></body></html>`)
	}))
	defer server.Close()

	s := newTestSession(t)
	s.Headers().Set("X-Custom", "tracked")

	require.NoError(t, s.Get(context.Background(), server.URL+"/start"))
	require.NoError(t, s.FollowLink(context.Background(), mech.WithText("Next")))
	require.True(t, s.Back())
	require.NoError(t, s.Reload(context.Background()))

	require.Len(t, seen, 3)
	for _, v := range seen {
		assert.Equal(t, "tracked", v, "added headers ride on every request, including after Back")
	}
}

func TestSession_SharedHeaderTable(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Shared")
		fmt.Fprintln(w, `<html></html>`)
	}))
	defer server.Close()

	shared := mech.NewHeaders()
	shared.Set("X-Shared", "yes")

	a := mech.NewSession(config.NewDefaultConfig(), zap.NewNop(), mech.WithHeaders(shared))
	b := mech.NewSession(config.NewDefaultConfig(), zap.NewNop(), mech.WithHeaders(shared))

	require.NoError(t, a.Get(context.Background(), server.URL))
	assert.Equal(t, "yes", got)
	require.NoError(t, b.Get(context.Background(), server.URL))
	assert.Equal(t, "yes", got)
}

func TestSession_TickAndUntick(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `<html><body>
			<form action="/go" method="POST">
				<input type="checkbox" name="opt" value="yes">
			</form>
		</body></html>`)
	}))
	defer server.Close()

	s := newTestSession(t)
	require.NoError(t, s.Get(context.Background(), server.URL))

	require.NoError(t, s.Tick("opt", "yes"))
	assert.Equal(t, "yes", s.Field("opt"))

	require.NoError(t, s.Untick("opt", "yes"))
	assert.Equal(t, "", s.Field("opt"))
}

func TestSession_TickMissingPairingWarns(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `<html><body>
			<form action="/go" method="POST">
				<input type="checkbox" name="opt" value="yes">
			</form>
		</body></html>`)
	}))
	defer server.Close()

	core, logs := observer.New(zap.WarnLevel)
	s := mech.NewSession(config.NewDefaultConfig(), zap.New(core))
	require.NoError(t, s.Get(context.Background(), server.URL))

	// Wrong value: warned, not fatal, state unchanged.
	require.NoError(t, s.Tick("opt", "no"))
	assert.Equal(t, "", s.Field("opt"))
	assert.Equal(t, 1, logs.FilterMessage("No checkbox matches the requested value").Len())
}

func TestSession_FieldOperationsRequireSelectedForm(t *testing.T) {
	s := newTestSession(t)
	assert.ErrorIs(t, s.SetField("q", "x"), mech.ErrNoForm)
	assert.ErrorIs(t, s.Tick("opt", "yes"), mech.ErrNoForm)
	assert.ErrorIs(t, s.Submit(context.Background()), mech.ErrNoForm)
}

func TestSession_SelectFormByName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `<html><body>
			<form name="first" action="/1"><input type="text" name="a"></form>
			<form name="dup" action="/2"><input type="text" name="b" value="two"></form>
			<form name="dup" action="/3"><input type="text" name="b" value="three"></form>
		</body></html>`)
	}))
	defer server.Close()

	core, logs := observer.New(zap.WarnLevel)
	s := mech.NewSession(config.NewDefaultConfig(), zap.New(core))
	require.NoError(t, s.Get(context.Background(), server.URL))

	// Ambiguous name warns and picks the first match.
	require.True(t, s.SelectFormByName("dup"))
	assert.Same(t, s.Forms()[1], s.SelectedForm())
	assert.Equal(t, 1, logs.FilterMessage("Multiple forms share this name; selecting the first").Len())

	// No match warns and leaves the selection unchanged.
	require.False(t, s.SelectFormByName("absent"))
	assert.Same(t, s.Forms()[1], s.SelectedForm())
}

func TestSession_SelectFormByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `<html><body>
			<form action="/1"><input type="text" name="a"></form>
			<form action="/2"><input type="text" name="b"></form>
		</body></html>`)
	}))
	defer server.Close()

	s := newTestSession(t)
	s.SetQuiet(true)
	require.NoError(t, s.Get(context.Background(), server.URL))

	require.True(t, s.SelectForm(2))
	assert.Same(t, s.Forms()[1], s.SelectedForm())

	assert.False(t, s.SelectForm(3))
	assert.Same(t, s.Forms()[1], s.SelectedForm(), "failed selection leaves the current one")
}

func TestSession_SubmitFormComposite(t *testing.T) {
	var form map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			fmt.Fprintln(w, `<html><body>
				<form name="login" action="/login" method="POST">
					<input type="text" name="user" value="">
					<input type="password" name="pass" value="">
					<input type="submit" name="go" value="Sign in">
				</form>
			</body></html>`)
		case "/login":
			require.NoError(t, r.ParseForm())
			form = r.PostForm
			fmt.Fprintln(w, `<html><title>Welcome</title></html>`)
		}
	}))
	defer server.Close()

	s := newTestSession(t)
	require.NoError(t, s.Get(context.Background(), server.URL+"/page"))

	err := s.SubmitForm(context.Background(), mech.SubmitOptions{
		FormName: "login",
		Fields: map[string]any{
			"user": "alice",
			"pass": "s3cret",
		},
		Button: "go",
	})
	require.NoError(t, err)

	assert.Equal(t, "Welcome", s.Title())
	assert.Equal(t, []string{"alice"}, form["user"])
	assert.Equal(t, []string{"s3cret"}, form["pass"])
	assert.Equal(t, []string{"Sign in"}, form["go"], "the clicked button's pair is serialized")
	assert.Equal(t, 1, s.HistoryDepth())
}

func TestSession_ClickImageCoordinates(t *testing.T) {
	var form map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			fmt.Fprintln(w, `<html><body>
				<form action="/target" method="POST">
					<input type="image" name="map" src="/map.png">
				</form>
			</body></html>`)
		case "/target":
			require.NoError(t, r.ParseForm())
			form = r.PostForm
			fmt.Fprintln(w, `<html></html>`)
		}
	}))
	defer server.Close()

	s := newTestSession(t)
	require.NoError(t, s.Get(context.Background(), server.URL+"/page"))

	require.NoError(t, s.ClickXY(context.Background(), "map", 3, 9))
	assert.Equal(t, []string{"3"}, form["map.x"])
	assert.Equal(t, []string{"9"}, form["map.y"])

	// The default click coordinate is (1,1), not (0,0).
	require.True(t, s.Back())
	require.NoError(t, s.Click(context.Background(), "map"))
	assert.Equal(t, []string{"1"}, form["map.x"])
	assert.Equal(t, []string{"1"}, form["map.y"])
}

func TestSession_BaseElementOverridesResolution(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/dir/page":
			fmt.Fprintln(w, `<html><head><base href="/other/"></head><body>
				<a href="rel">Relative</a>
			</body></html>`)
		case "/other/rel":
			fmt.Fprintln(w, `<html><title>Based</title></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	s := newTestSession(t)
	require.NoError(t, s.Get(context.Background(), server.URL+"/dir/page"))
	assert.Equal(t, server.URL+"/other/", s.Base().String())

	require.NoError(t, s.FollowLink(context.Background(), mech.WithText("Relative")))
	assert.Equal(t, "Based", s.Title())
}

func TestSession_RelativeGetWithoutPageFails(t *testing.T) {
	s := newTestSession(t)
	err := s.Get(context.Background(), "/relative")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without a current page")
}

func TestSession_TransportFailureResetsPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `<html><body><a href="/x">X</a></body></html>`)
	}))
	s := newTestSession(t)
	require.NoError(t, s.Get(context.Background(), server.URL))
	require.Len(t, s.Links(), 1)

	// Kill the server: the next fetch fails at the transport level, but
	// page state is still re-derived (to an empty failed page).
	serverURL := server.URL
	server.Close()

	err := s.Get(context.Background(), serverURL)
	require.Error(t, err)
	assert.False(t, s.Success())
	assert.Empty(t, s.Links())
	assert.Empty(t, s.Forms())
}

func TestSession_FindLinkWith_WarnsOnUnknownKeys(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `<html><body><a href="/a">First</a></body></html>`)
	}))
	defer server.Close()

	core, logs := observer.New(zap.WarnLevel)
	s := mech.NewSession(config.NewDefaultConfig(), zap.New(core))
	require.NoError(t, s.Get(context.Background(), server.URL))

	link, err := s.FindLinkWith(map[string]any{"url": "/a", "colour": "red"})
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, "First", link.Text)
	assert.Equal(t, 1, logs.FilterMessage("Unknown criteria key ignored").Len())

	// Quiet suppresses the warning channel entirely.
	s.SetQuiet(true)
	_, err = s.FindLinkWith(map[string]any{"url": "/a", "colour": "red"})
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("Unknown criteria key ignored").Len())
}

func TestSession_LogsCarrySessionID(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s := mech.NewSession(config.NewDefaultConfig(), zap.New(core))

	assert.False(t, s.Back())
	entries := logs.All()
	require.NotEmpty(t, entries)
	assert.Equal(t, s.ID(), entries[0].ContextMap()["session_id"])
}

func TestSession_CookiesPersistAcrossExchanges(t *testing.T) {
	var cookieSeen string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/set":
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc123", Path: "/"})
			fmt.Fprintln(w, `<html></html>`)
		case "/read":
			if c, err := r.Cookie("sid"); err == nil {
				cookieSeen = c.Value
			}
			fmt.Fprintln(w, `<html></html>`)
		}
	}))
	defer server.Close()

	s := newTestSession(t)
	require.NoError(t, s.Get(context.Background(), server.URL+"/set"))
	require.NoError(t, s.Get(context.Background(), server.URL+"/read"))
	assert.Equal(t, "abc123", cookieSeen)
}
