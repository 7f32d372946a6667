package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestFlexFloat(t *testing.T) {
	cases := []struct {
		in     string
		want   float64
		usable bool
	}{
		{`40.5`, 40.5, true},
		{`"40.5"`, 40.5, true},
		{`" -3.7 "`, -3.7, true},
		{`"abc"`, 0, false},
		{`true`, 0, false},
		{`"1e400"`, 0, false},
	}
	for _, tc := range cases {
		var f FlexFloat
		if err := json.Unmarshal([]byte(tc.in), &f); err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		got, usable := f.Value()
		if usable != tc.usable || (usable && got != tc.want) {
			t.Fatalf("%s: got %v,%v want %v,%v", tc.in, got, usable, tc.want, tc.usable)
		}
	}

	var nilF *FlexFloat
	if _, usable := nilF.Value(); usable || nilF.ptr() != nil {
		t.Fatal("nil FlexFloat must be unusable")
	}
	bad := FlexFloat(math.NaN())
	if bad.ptr() != nil {
		t.Fatal("NaN must not yield a pointer")
	}
}

func TestFlexIntAndBool(t *testing.T) {
	ints := map[string]int{`7`: 7, `"12"`: 12, `"3.9"`: 3, `"x"`: 0, `null`: 0}
	for in, want := range ints {
		var n FlexInt
		_ = json.Unmarshal([]byte(in), &n)
		if n.Int(-1) != want {
			t.Fatalf("%s: got %d want %d", in, n.Int(-1), want)
		}
	}
	var nilN *FlexInt
	if nilN.Int(5) != 5 {
		t.Fatal("nil FlexInt must return the default")
	}

	bools := map[string]bool{`true`: true, `false`: false, `"0"`: false, `1`: true, `"si"`: true, `""`: false}
	for in, want := range bools {
		var b FlexBool
		if err := json.Unmarshal([]byte(in), &b); err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if bool(b) != want {
			t.Fatalf("%s: got %v want %v", in, b, want)
		}
	}
}

func TestValidateRequest_FirstFieldWins(t *testing.T) {
	// embedded credentials are checked before the endpoint's own fields
	ve := validateRequest(&GeneralMessageRequest{})
	if ve == nil || ve.Code != CodeMissingUserToken || ve.Field != "user_token" {
		t.Fatalf("unexpected: %+v", ve)
	}

	ve = validateRequest(&GeneralMessageRequest{UserTokenAuth: UserTokenAuth{UserToken: "t"}})
	if ve == nil || ve.Code != CodeMissingChatToken || ve.Status != http.StatusBadRequest {
		t.Fatalf("unexpected: %+v", ve)
	}

	zero := FlexInt(0)
	ve = validateRequest(&PollRequest{
		UserTokenAuth: UserTokenAuth{UserToken: "t"},
		RoomToken:     "r",
		LastMessageID: &zero,
	})
	if ve != nil {
		t.Fatalf("ultimo_mensaje_id 0 is present, got %+v", ve)
	}

	lat, lon := FlexFloat(91), FlexFloat(0)
	ve = validateRequest(&LoginRequest{APIKey: "k", Email: "e", Password: "p", Latitude: &lat, Longitude: &lon})
	if ve == nil || ve.Code != CodeMissingCredentials || ve.Field != "latitud" {
		t.Fatalf("out-of-range latitude must fail: %+v", ve)
	}
}

func TestBind_ToleratesGarbage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"api_key":"k",`))

	var req ChatRequest
	bind(c, &req)
	if req.UserToken != "" {
		t.Fatalf("unexpected decode: %+v", req)
	}
}

func TestQueryOr(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/?page=3&per_page=x", nil)

	body := FlexInt(9)
	if got := queryOr(c, "page", &body, 1); got != 3 {
		t.Fatalf("query must win, got %d", got)
	}
	if got := queryOr(c, "per_page", &body, 20); got != 20 {
		t.Fatalf("bad query falls back to default, got %d", got)
	}
	if got := queryOr(c, "limit", &body, 20); got != 9 {
		t.Fatalf("body used when query absent, got %d", got)
	}
}
