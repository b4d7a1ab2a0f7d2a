package gemini

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/makolon/og-vlm/logging"
	"github.com/makolon/og-vlm/plan"
	"github.com/makolon/og-vlm/planner"
)

func TestPlan(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		test.That(t, r.URL.Path, test.ShouldEqual, "/v1beta/models/gemini-2.5-pro:generateContent")
		test.That(t, r.Header.Get("x-goog-api-key"), test.ShouldEqual, "g-test")
		test.That(t, json.NewDecoder(r.Body).Decode(&got), test.ShouldBeNil)
		w.Write([]byte(`{"candidates": [{"content": {"parts": [
			{"text": "{\"plan\": [{\"op\": \"OPEN\", \"target\": \"fridge_1\"},"},
			{"text": " {\"op\": \"PLACE_INSIDE\", \"object\": \"apple_1\", \"receptacle\": \"fridge_1\"}]}"}
		]}, "finishReason": "STOP"}]}`))
	}))
	defer srv.Close()

	p, err := New(planner.Settings{Model: "gemini-2.5-pro", Temperature: 0.1, APIKey: "g-test", BaseURL: srv.URL + "/v1beta"},
		logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	out, err := p.Plan(context.Background(), planner.Request{
		Activity: "stocking_the_fridge",
		Catalog:  []string{"fridge_1", "apple_1"},
		Notes:    "door opens left",
		Image:    image.NewRGBA(image.Rect(0, 0, 4, 4)),
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldResemble, plan.New(
		plan.Open{Target: "fridge_1"},
		plan.PlaceInside{Object: "apple_1", Receptacle: "fridge_1"},
	))

	contents := got["contents"].([]interface{})
	parts := contents[0].(map[string]interface{})["parts"].([]interface{})
	test.That(t, parts, test.ShouldHaveLength, 2)
	test.That(t, parts[0].(map[string]interface{})["text"], test.ShouldContainSubstring, "Constraints / Notes: door opens left")
	test.That(t, parts[1].(map[string]interface{})["inlineData"].(map[string]interface{})["mimeType"], test.ShouldEqual, "image/png")
	config := got["generationConfig"].(map[string]interface{})
	test.That(t, config["responseMimeType"], test.ShouldEqual, "application/json")
	test.That(t, config["responseJsonSchema"], test.ShouldNotBeNil)
}

func TestFailures(t *testing.T) {
	reply := ""
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(reply))
	}))
	defer srv.Close()
	p, err := New(planner.Settings{Model: "gemini-2.5-pro", APIKey: "g-test", BaseURL: srv.URL}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	ctx := context.Background()

	reply = `{"candidates": []}`
	_, err = p.Plan(ctx, planner.Request{Activity: "a"})
	test.That(t, errors.Is(err, plan.ErrMalformedPlan), test.ShouldBeTrue)

	reply = `{"candidates": [{"content": {"parts": [{"text": "not json"}]}}]}`
	_, err = p.Plan(ctx, planner.Request{Activity: "a"})
	test.That(t, errors.Is(err, plan.ErrMalformedPlan), test.ShouldBeTrue)

	reply = `{"promptFeedback": {"blockReason": "SAFETY"}}`
	_, err = p.Plan(ctx, planner.Request{Activity: "a"})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "SAFETY")

	status, reply = http.StatusTooManyRequests, `{"error": {"message": "quota"}}`
	_, err = p.Plan(ctx, planner.Request{Activity: "a"})
	var statusErr *planner.StatusError
	test.That(t, errors.As(err, &statusErr), test.ShouldBeTrue)
	test.That(t, statusErr.Code, test.ShouldEqual, http.StatusTooManyRequests)
}

func TestAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	_, err := New(planner.Settings{Model: "gemini-2.5-pro"}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)

	t.Setenv("GEMINI_API_KEY", "g-env")
	t.Setenv("GEMINI_BASE_URL", "http://localhost:1234/")
	p, err := New(planner.Settings{Model: "gemini-2.5-pro"}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.baseURL, test.ShouldEqual, "http://localhost:1234")
}
