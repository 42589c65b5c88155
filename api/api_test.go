package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/yurie-chat/yurie/api"
	"github.com/yurie-chat/yurie/pkg/logger"
	"github.com/yurie-chat/yurie/pkg/models"
)

func do(app *fiber.App, method, path, body string) (int, string) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp.StatusCode, string(out)
}

var _ = Describe("Server", func() {
	var (
		app   *fiber.App
		loads atomic.Int32
		fail  atomic.Bool
	)

	BeforeEach(func() {
		loads.Store(0)
		fail.Store(false)

		catalog := models.NewCache(func(ctx context.Context) ([]models.Model, error) {
			loads.Add(1)
			if fail.Load() {
				return nil, errors.New("catalog unavailable")
			}
			return models.StaticLoader(ctx)
		}, time.Hour)

		app = fiber.New(fiber.Config{DisableStartupMessage: true})
		api.NewServer(api.Config{}, catalog, logger.Nop()).Register(app)
	})

	It("answers ping", func() {
		status, body := do(app, http.MethodGet, "/ping", "")
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(Equal(`"pong"`))
	})

	Describe("GET /api/models", func() {
		It("lists free models first, marked accessible", func() {
			status, body := do(app, http.MethodGet, "/api/models", "")
			Expect(status).To(Equal(http.StatusOK))

			var resp api.ModelsResponse
			Expect(json.Unmarshal([]byte(body), &resp)).To(Succeed())
			Expect(resp.Models).To(HaveLen(len(models.Static())))
			Expect(resp.Models[0].ID).To(Equal(models.DefaultModel))
			Expect(resp.Models[0].Accessible).To(BeTrue())
			Expect(resp.Models[1].Accessible).To(BeFalse())
		})

		It("filters by provider", func() {
			_, body := do(app, http.MethodGet, "/api/models?provider=openai", "")

			var resp api.ModelsResponse
			Expect(json.Unmarshal([]byte(body), &resp)).To(Succeed())
			Expect(resp.Models).NotTo(BeEmpty())
			for _, m := range resp.Models {
				Expect(m.ProviderID).To(Equal("openai"))
				Expect(m.Accessible).To(BeTrue())
			}

			_, body = do(app, http.MethodGet, "/api/models?provider=nobody", "")
			Expect(body).To(MatchJSON(`{"models":[]}`))
		})

		It("serves repeated requests from the cache", func() {
			do(app, http.MethodGet, "/api/models", "")
			do(app, http.MethodGet, "/api/models", "")
			Expect(loads.Load()).To(Equal(int32(1)))
		})

		It("reports loader failures as 500", func() {
			fail.Store(true)
			status, body := do(app, http.MethodGet, "/api/models", "")
			Expect(status).To(Equal(http.StatusInternalServerError))
			Expect(body).To(MatchJSON(`{"error":"Failed to fetch models"}`))
		})
	})

	Describe("POST /api/models/refresh", func() {
		It("reloads the catalog", func() {
			do(app, http.MethodGet, "/api/models", "")
			status, body := do(app, http.MethodPost, "/api/models/refresh", "")
			Expect(status).To(Equal(http.StatusOK))
			Expect(loads.Load()).To(Equal(int32(2)))

			var resp api.RefreshResponse
			Expect(json.Unmarshal([]byte(body), &resp)).To(Succeed())
			Expect(resp.Count).To(Equal(len(models.Static())))
			Expect(resp.Models).To(HaveLen(resp.Count))
			Expect(resp.Timestamp).NotTo(BeEmpty())
		})
	})

	Describe("user preferences", func() {
		It("returns the defaults", func() {
			status, body := do(app, http.MethodGet, "/api/user-preferences", "")
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(MatchJSON(`{
				"layout": "fullscreen",
				"prompt_suggestions": true,
				"show_tool_invocations": true,
				"show_conversation_previews": true,
				"multi_model_enabled": false,
				"hidden_models": []
			}`))
		})

		It("echoes a valid update", func() {
			status, body := do(app, http.MethodPut, "/api/user-preferences",
				`{"layout":"sidebar","multi_model_enabled":true,"hidden_models":["gpt-4o"]}`)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(MatchJSON(`{
				"success": true,
				"layout": "sidebar",
				"multi_model_enabled": true,
				"hidden_models": ["gpt-4o"]
			}`))
		})

		DescribeTable("rejects wrongly typed fields",
			func(body, message string) {
				status, out := do(app, http.MethodPut, "/api/user-preferences", body)
				Expect(status).To(Equal(http.StatusBadRequest))
				Expect(out).To(MatchJSON(`{"error":"` + message + `"}`))
			},
			Entry("layout", `{"layout":3}`, "layout must be a string"),
			Entry("hidden_models", `{"hidden_models":"gpt-4o"}`, "hidden_models must be an array"),
		)

		It("fails on a body that is not JSON", func() {
			status, _ := do(app, http.MethodPut, "/api/user-preferences", `nope`)
			Expect(status).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("POST /api/create-chat", func() {
		It("requires a user id", func() {
			status, body := do(app, http.MethodPost, "/api/create-chat", `{"title":"x"}`)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(body).To(MatchJSON(`{"error":"Missing userId"}`))
		})

		It("returns a client-only chat with defaults", func() {
			status, body := do(app, http.MethodPost, "/api/create-chat", `{"userId":"u1","model":"gpt-5"}`)
			Expect(status).To(Equal(http.StatusOK))

			var resp api.CreateChatResponse
			Expect(json.Unmarshal([]byte(body), &resp)).To(Succeed())
			chat := resp.Chat
			Expect(uuid.Parse(chat.ID)).Error().NotTo(HaveOccurred())
			Expect(chat.UserID).To(Equal("u1"))
			Expect(chat.Title).To(Equal("New Chat"))
			Expect(chat.Model).To(Equal("gpt-5"))
			Expect(chat.ProjectID).To(BeNil())
			Expect(chat.Public).To(BeFalse())
			Expect(chat.CreatedAt).To(Equal(chat.UpdatedAt))
			Expect(time.Parse(time.RFC3339, chat.CreatedAt)).Error().NotTo(HaveOccurred())
			Expect(body).To(ContainSubstring(`"project_id":null`))
		})

		It("keeps the title and project", func() {
			_, body := do(app, http.MethodPost, "/api/create-chat", `{"userId":"u1","title":"Trip","projectId":"p9"}`)

			var resp api.CreateChatResponse
			Expect(json.Unmarshal([]byte(body), &resp)).To(Succeed())
			Expect(resp.Chat.Title).To(Equal("Trip"))
			Expect(resp.Chat.Model).To(Equal(models.DefaultModel))
			Expect(resp.Chat.ProjectID).To(HaveValue(Equal("p9")))
		})
	})

	Describe("POST /api/update-chat-model", func() {
		DescribeTable("requires both fields",
			func(body string) {
				status, out := do(app, http.MethodPost, "/api/update-chat-model", body)
				Expect(status).To(Equal(http.StatusBadRequest))
				Expect(out).To(MatchJSON(`{"error":"Missing chatId or model"}`))
			},
			Entry("no chat id", `{"model":"gpt-5"}`),
			Entry("no model", `{"chatId":"c1"}`),
		)

		It("acknowledges a valid change", func() {
			status, body := do(app, http.MethodPost, "/api/update-chat-model", `{"chatId":"c1","model":"gpt-5"}`)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(MatchJSON(`{"success":true}`))
		})
	})

	Describe("projects", func() {
		It("lists no projects", func() {
			_, body := do(app, http.MethodGet, "/api/projects", "")
			Expect(body).To(MatchJSON(`[]`))
		})

		It("stubs creation", func() {
			_, body := do(app, http.MethodPost, "/api/projects", `{"name":"Research"}`)
			Expect(body).To(MatchJSON(`{"id":"local","name":"Research"}`))
		})
	})
})
