package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/yurie-chat/yurie/pkg/client"
	"github.com/yurie-chat/yurie/pkg/llm"
	"github.com/yurie-chat/yurie/pkg/logger"
	"github.com/yurie-chat/yurie/pkg/sse"
)

func frame(event, data string) string {
	return "event: " + event + "\ndata: " + data + "\n\n"
}

var _ = Describe("Client", func() {
	var (
		server   *httptest.Server
		handler  http.HandlerFunc
		lastPath string
		lastBody map[string]any
		c        *client.Client
	)

	BeforeEach(func() {
		lastPath = ""
		lastBody = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			lastPath = r.URL.Path
			_ = json.Unmarshal(raw, &lastBody)
			handler(w, r)
		}))
		c = client.New(server.URL+"/", logger.Nop())
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("StreamChat", func() {
		It("dispatches frames in order until done", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				fmt.Fprint(w, frame(llm.EventTextDelta, `{"delta":"Hi"}`))
				fmt.Fprint(w, frame(llm.EventTextDelta, `{"delta":" there"}`))
				fmt.Fprint(w, frame(llm.EventDone, `{}`))
				fmt.Fprint(w, frame(llm.EventTextDelta, `{"delta":"ignored"}`))
			}

			var names []string
			err := c.StreamChat(context.Background(), llm.ChatRequest{
				Model:    "gpt-5",
				Messages: []llm.ChatMessage{{Role: llm.RoleUser, Content: "hello"}},
			}, func(ev sse.Event) bool {
				names = append(names, ev.Name())
				return true
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{llm.EventTextDelta, llm.EventTextDelta, llm.EventDone}))
			Expect(lastPath).To(Equal(client.ChatPath))
			Expect(lastBody["model"]).To(Equal("gpt-5"))
		})

		It("copies the raw frames to Frames", func() {
			wire := frame(llm.EventTextDelta, `{"delta":"Hi"}`) + ": keep-alive\n\n" + frame(llm.EventDone, `{}`)
			handler = func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, wire)
			}

			var raw bytes.Buffer
			c.Frames = &raw
			Expect(c.StreamChat(context.Background(), llm.ChatRequest{}, func(sse.Event) bool { return true })).To(Succeed())

			Expect(raw.String()).To(Equal(wire))
		})

		It("delivers a trailing frame without a blank line", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, frame(llm.EventTextDelta, `{"delta":"a"}`))
				fmt.Fprint(w, `data: {"delta":"b"}`)
			}

			var events []sse.Event
			Expect(c.StreamChat(context.Background(), llm.ChatRequest{}, func(ev sse.Event) bool {
				events = append(events, ev)
				return true
			})).To(Succeed())

			Expect(events).To(HaveLen(2))
			Expect(events[1].Name()).To(Equal(sse.DefaultEventName))
		})

		It("stops when the callback declines", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, frame(llm.EventTextDelta, `{"delta":"a"}`))
				fmt.Fprint(w, frame(llm.EventTextDelta, `{"delta":"b"}`))
			}

			calls := 0
			Expect(c.StreamChat(context.Background(), llm.ChatRequest{}, func(sse.Event) bool {
				calls++
				return false
			})).To(Succeed())
			Expect(calls).To(Equal(1))
		})

		It("returns an UpstreamError for non-200 responses", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"error":"Missing OPENAI_API_KEY","code":"configuration_error"}`)
			}

			err := c.StreamChat(context.Background(), llm.ChatRequest{}, func(sse.Event) bool { return true })

			var upErr *llm.UpstreamError
			Expect(errors.As(err, &upErr)).To(BeTrue())
			Expect(upErr.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(upErr.Message).To(Equal("Missing OPENAI_API_KEY"))
		})

		It("keeps plain text error bodies", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				fmt.Fprint(w, "bad gateway upstream")
			}

			err := c.StreamChat(context.Background(), llm.ChatRequest{}, func(sse.Event) bool { return true })

			var upErr *llm.UpstreamError
			Expect(errors.As(err, &upErr)).To(BeTrue())
			Expect(upErr.Message).To(Equal("bad gateway upstream"))
		})

		It("returns ErrAborted when the context is cancelled mid-stream", func() {
			release := make(chan struct{})
			defer close(release)
			handler = func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, frame(llm.EventTextDelta, `{"delta":"a"}`))
				w.(http.Flusher).Flush()
				select {
				case <-r.Context().Done():
				case <-release:
				}
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var got []string
			err := c.StreamChat(ctx, llm.ChatRequest{}, func(ev sse.Event) bool {
				got = append(got, ev.Name())
				cancel()
				return true
			})

			Expect(errors.Is(err, llm.ErrAborted)).To(BeTrue())
			Expect(llm.IsAbort(err)).To(BeTrue())
			Expect(got).To(HaveLen(1))
		})

		It("returns a TransportError when the relay is unreachable", func() {
			handler = func(http.ResponseWriter, *http.Request) {}
			dead := client.New(server.URL, logger.Nop())
			server.Close()

			err := dead.StreamChat(context.Background(), llm.ChatRequest{}, func(sse.Event) bool { return true })

			var trErr *llm.TransportError
			Expect(errors.As(err, &trErr)).To(BeTrue())
		})
	})

	Describe("GenerateImage", func() {
		It("returns the image", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"image":"QUJD"}`)
			}

			img, err := c.GenerateImage(context.Background(), llm.ImageRequest{Prompt: "a fox"})
			Expect(err).NotTo(HaveOccurred())
			Expect(img).To(Equal("QUJD"))
			Expect(lastPath).To(Equal(client.ImagesPath))
			Expect(lastBody["prompt"]).To(Equal("a fox"))
		})

		It("surfaces relay errors", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"error":"No image generated"}`)
			}

			_, err := c.GenerateImage(context.Background(), llm.ImageRequest{Prompt: "a fox"})
			Expect(err).To(MatchError(ContainSubstring("No image generated")))
		})

		It("times out with the context", func() {
			handler = func(_ http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(5 * time.Second):
				}
			}

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			_, err := c.GenerateImage(ctx, llm.ImageRequest{Prompt: "a fox"})
			Expect(errors.Is(err, llm.ErrAborted)).To(BeTrue())
		})
	})

	Describe("Playground", func() {
		It("copies the raw text stream", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				fmt.Fprint(w, "Hello ")
				w.(http.Flusher).Flush()
				fmt.Fprint(w, "world\n"+llm.ImageSentinel("QUJD")+"\n")
			}

			var out strings.Builder
			Expect(c.Playground(context.Background(), llm.PlaygroundRequest{
				Messages: []llm.ChatMessage{{Role: llm.RoleUser, Content: "hi"}},
			}, &out)).To(Succeed())

			Expect(out.String()).To(Equal("Hello world\n" + llm.ImageSentinel("QUJD") + "\n"))
			Expect(lastPath).To(Equal(client.PlaygroundPath))
		})
	})
})
