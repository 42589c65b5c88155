package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/yurie-chat/yurie/pkg/eventstream"
	"github.com/yurie-chat/yurie/pkg/llm"
	"github.com/yurie-chat/yurie/pkg/llm/provider/openai"
	"github.com/yurie-chat/yurie/pkg/logger"
	"github.com/yurie-chat/yurie/pkg/sse"
)

// tickingDeltas streams a delta every 20ms until the request is cancelled,
// then closes done.
func tickingDeltas(done chan struct{}) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		defer close(done)
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		deadline := time.After(testTimeout)
		for {
			select {
			case <-r.Context().Done():
				return
			case <-deadline:
				return
			case <-ticker.C:
				fmt.Fprint(w, frame("response.output_text.delta", `{"delta":"x"}`))
				flusher.Flush()
			}
		}
	}
}

func parseFrames(body string) []sse.Event {
	p := sse.NewParser()
	events := p.Feed([]byte(body))
	return append(events, p.Flush()...)
}

var _ = Describe("Relay", func() {
	var (
		r        *Relay
		pub      *recordingPublisher
		upstream *upstreamRecorder
	)

	AfterEach(func() {
		if r != nil {
			r.Close()
			r = nil
		}
		if upstream != nil {
			upstream.server.Close()
			upstream = nil
		}
	})

	Context("without an upstream credential", func() {
		BeforeEach(func() {
			r, pub = newTestRelay("", Config{})
		})

		DescribeTable("answers every model route with a configuration error",
			func(path, body string) {
				resp, out := post(r, path, body)
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))

				var errResp llm.ErrorResponse
				Expect(json.Unmarshal([]byte(out), &errResp)).To(Succeed())
				Expect(errResp.Error).To(Equal("Missing OPENAI_API_KEY"))
				Expect(errResp.Code).To(Equal("configuration_error"))
			},
			Entry("chat", RouteChat, `{"messages":[{"role":"user","content":"hi"}]}`),
			Entry("chat with invalid JSON", RouteChat, `{not json`),
			Entry("images", RouteImages, `{"prompt":"a cat"}`),
			Entry("playground", RoutePlayground, `{"messages":[]}`),
		)

		It("validates playground messages before the credential", func() {
			resp, out := post(r, RoutePlayground, `{"model":"gpt-5"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(out).To(ContainSubstring("messages[] required"))
		})
	})

	Describe("POST /api/chat", func() {
		Context("when upstream streams a normal answer", func() {
			BeforeEach(func() {
				upstream = newUpstream(sseFrames(
					frame("response.created", `{"type":"response.created"}`),
					frame("response.output_text.delta", `{"delta":"Hel"}`),
					frame("response.output_text.delta", `{"delta":"lo"}`),
					frame("response.output_text.done", `{"text":"Hello"}`),
					frame("response.completed", `{"response":{"output":[]}}`),
				))
				r, pub = newTestRelay(upstream.server.URL, Config{})
			})

			It("relays deltas in order and ends with exactly one done frame", func() {
				resp, body := post(r, RouteChat, `{"messages":[{"role":"user","content":"hi"}]}`)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream; charset=utf-8"))
				Expect(resp.Header.Get("Cache-Control")).To(Equal("no-cache, no-transform"))
				Expect(resp.Header.Get("X-Accel-Buffering")).To(Equal("no"))

				events := parseFrames(body)
				names := make([]string, 0, len(events))
				for _, ev := range events {
					names = append(names, ev.Name())
				}
				Expect(names).To(Equal([]string{
					llm.EventTextDelta,
					llm.EventTextDelta,
					llm.EventTextDone,
					llm.EventCompleted,
					llm.EventDone,
				}))

				var first llm.DeltaPayload
				Expect(events[0].Decode(&first)).To(Succeed())
				Expect(first.Delta).To(Equal("Hel"))

				var second llm.DeltaPayload
				Expect(events[1].Decode(&second)).To(Succeed())
				Expect(second.Delta).To(Equal("lo"))
				Expect(second.Snapshot).To(Equal("Hello"))

				Expect(strings.Count(body, "event: done")).To(Equal(1))
			})

			It("maps messages to input and defaults the model", func() {
				post(r, RouteChat, `{"messages":[{"role":"user","content":"hi"},{"role":"assistant","content":"yo"}]}`)

				Expect(upstream.lastPath()).To(Equal("/responses"))
				sent := upstream.lastBody()
				Expect(sent["model"]).To(Equal("gpt-5"))
				Expect(sent["stream"]).To(BeTrue())
				Expect(sent["input"]).To(Equal([]any{
					map[string]any{"role": "user", "content": "hi"},
					map[string]any{"role": "assistant", "content": "yo"},
				}))
			})

			It("forwards input verbatim with model and instructions", func() {
				post(r, RouteChat, `{"model":"gpt-4.1","instructions":"be brief","input":[{"role":"user","content":[{"type":"input_text","text":"hi"}]}]}`)

				sent := upstream.lastBody()
				Expect(sent["model"]).To(Equal("gpt-4.1"))
				Expect(sent["instructions"]).To(Equal("be brief"))
				Expect(sent["input"]).To(Equal([]any{
					map[string]any{"role": "user", "content": []any{
						map[string]any{"type": "input_text", "text": "hi"},
					}},
				}))
			})

			It("publishes one turn event", func() {
				post(r, RouteChat, `{"messages":[{"role":"user","content":"hi"}]}`)
				events := drain(r, pub)
				r = nil

				Expect(events).To(HaveLen(1))
				Expect(events[0].Route).To(Equal(RouteChat))
				Expect(events[0].Status).To(Equal(eventstream.StatusCompleted))
				Expect(events[0].Deltas).To(Equal(2))
				Expect(events[0].Bytes).To(Equal(int64(5)))
			})

			It("rejects invalid JSON", func() {
				resp, body := post(r, RouteChat, `{"messages":`)
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(body).To(ContainSubstring("parse_error"))
				Expect(upstream.requests()).To(Equal(0))
			})
		})

		Context("when upstream fails before streaming", func() {
			It("passes 4xx statuses through as JSON", func() {
				upstream = newUpstream(func(w http.ResponseWriter, _ *http.Request) {
					w.WriteHeader(http.StatusUnauthorized)
					fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
				})
				r, pub = newTestRelay(upstream.server.URL, Config{})

				resp, body := post(r, RouteChat, `{"messages":[]}`)
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				Expect(resp.Header.Get("Content-Type")).To(HavePrefix("application/json"))
				Expect(body).To(ContainSubstring("bad key"))
			})

			It("maps 5xx statuses to 502", func() {
				upstream = newUpstream(func(w http.ResponseWriter, _ *http.Request) {
					w.WriteHeader(http.StatusServiceUnavailable)
				})
				r, pub = newTestRelay(upstream.server.URL, Config{})

				resp, _ := post(r, RouteChat, `{"messages":[]}`)
				Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))

				events := drain(r, pub)
				r = nil
				Expect(events).To(HaveLen(1))
				Expect(events[0].Status).To(Equal(eventstream.StatusError))
			})
		})

		Context("when upstream reports an error mid-stream", func() {
			BeforeEach(func() {
				upstream = newUpstream(sseFrames(
					frame("response.output_text.delta", `{"delta":"partial"}`),
					frame("error", `{"message":"model overloaded"}`),
				))
				r, pub = newTestRelay(upstream.server.URL, Config{})
			})

			It("folds the error into an error frame followed by done", func() {
				resp, body := post(r, RouteChat, `{"messages":[]}`)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				events := parseFrames(body)
				Expect(events).To(HaveLen(3))
				Expect(events[1].Name()).To(Equal(llm.EventError))

				var payload llm.ErrorPayload
				Expect(events[1].Decode(&payload)).To(Succeed())
				Expect(payload.Message).To(Equal("model overloaded"))
				Expect(events[2].Name()).To(Equal(llm.EventDone))
			})
		})

		Context("when the turn outlives MaxDuration", func() {
			BeforeEach(func() {
				upstream = newUpstream(func(w http.ResponseWriter, req *http.Request) {
					w.Header().Set("Content-Type", "text/event-stream")
					fmt.Fprint(w, frame("response.output_text.delta", `{"delta":"slow"}`))
					w.(http.Flusher).Flush()

					select {
					case <-req.Context().Done():
					case <-time.After(testTimeout):
					}
				})
				r, pub = newTestRelay(upstream.server.URL, Config{MaxDuration: 200 * time.Millisecond})
			})

			It("sends a timeout error frame and then done", func() {
				start := time.Now()
				_, body := post(r, RouteChat, `{"messages":[]}`)
				Expect(time.Since(start)).To(BeNumerically("<", 3*time.Second))

				events := parseFrames(body)
				Expect(events).To(HaveLen(3))
				Expect(events[0].Name()).To(Equal(llm.EventTextDelta))

				var payload llm.ErrorPayload
				Expect(events[1].Decode(&payload)).To(Succeed())
				Expect(payload.Message).To(Equal(openai.TimeoutMessage))
				Expect(events[2].Name()).To(Equal(llm.EventDone))

				turns := drain(r, pub)
				r = nil
				Expect(turns).To(HaveLen(1))
				Expect(turns[0].Status).To(Equal(eventstream.StatusError))
				Expect(turns[0].Error).To(Equal(openai.TimeoutMessage))
			})
		})

		Context("when the client disconnects", func() {
			var upstreamDone chan struct{}

			BeforeEach(func() {
				upstreamDone = make(chan struct{})
				upstream = newUpstream(tickingDeltas(upstreamDone))
				r, pub = newTestRelay(upstream.server.URL, Config{})
			})

			It("aborts the upstream request", func() {
				ln, err := net.Listen("tcp", "127.0.0.1:0")
				Expect(err).NotTo(HaveOccurred())
				go func() { _ = r.RunWithListener(ln) }()

				ctx, cancel := context.WithCancel(context.Background())
				req, err := http.NewRequestWithContext(ctx, http.MethodPost,
					"http://"+ln.Addr().String()+RouteChat, strings.NewReader(`{"messages":[]}`))
				Expect(err).NotTo(HaveOccurred())

				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())

				line, err := bufio.NewReader(resp.Body).ReadString('\n')
				Expect(err).NotTo(HaveOccurred())
				Expect(line).To(Equal("event: " + llm.EventTextDelta + "\n"))

				cancel()
				resp.Body.Close()

				Eventually(upstreamDone, testTimeout).Should(BeClosed())
			})
		})
	})

	Describe("POST /api/images", func() {
		It("rejects a missing prompt", func() {
			upstream = newUpstream(sseFrames())
			r, pub = newTestRelay(upstream.server.URL, Config{})

			resp, body := post(r, RouteImages, `{"size":"512x512"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(body).To(MatchJSON(`{"error":"missing prompt"}`))
		})

		It("returns the generated image with the default size", func() {
			upstream = newUpstream(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"data":[{"b64_json":"QUJD"}]}`)
			})
			r, pub = newTestRelay(upstream.server.URL, Config{ImageModel: "img-test"})

			resp, body := post(r, RouteImages, `{"prompt":"a cat"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(MatchJSON(`{"image":"QUJD"}`))

			sent := upstream.lastBody()
			Expect(upstream.lastPath()).To(Equal("/images/generations"))
			Expect(sent["model"]).To(Equal("img-test"))
			Expect(sent["size"]).To(Equal("1024x1024"))
			Expect(sent).NotTo(HaveKey("stream"))
		})

		It("answers 500 when no image came back", func() {
			upstream = newUpstream(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"data":[]}`)
			})
			r, pub = newTestRelay(upstream.server.URL, Config{})

			resp, body := post(r, RouteImages, `{"prompt":"a cat"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(body).To(MatchJSON(`{"error":"No image generated"}`))
		})

		It("answers 502 on upstream failure", func() {
			upstream = newUpstream(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":{"message":"unsafe prompt"}}`)
			})
			r, pub = newTestRelay(upstream.server.URL, Config{})

			resp, body := post(r, RouteImages, `{"prompt":"a cat"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
			Expect(body).To(ContainSubstring("unsafe prompt"))
		})
	})

	Describe("POST /api/playground", func() {
		It("streams raw text and appends generated images as sentinels", func() {
			upstream = newUpstream(sseFrames(
				frame("response.output_text.delta", `{"delta":"Here "}`),
				frame("response.output_text.delta", `{"delta":"you go"}`),
				frame("response.completed", `{"response":{"output":[{"type":"image_generation_call","result":"SU1H"}]}}`),
			))
			r, pub = newTestRelay(upstream.server.URL, Config{})

			resp, body := post(r, RoutePlayground, `{"messages":[{"role":"user","content":"tell me a story"}]}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/plain; charset=utf-8"))
			Expect(body).To(Equal("Here you go\n" + llm.ImageSentinel("SU1H") + "\n"))
		})

		It("builds the prompt from stripped history with the default model", func() {
			upstream = newUpstream(sseFrames())
			r, pub = newTestRelay(upstream.server.URL, Config{})

			post(r, RoutePlayground, `{"messages":[
				{"role":"user","content":"look <image:data:image/png;base64,AAAA>"},
				{"role":"assistant","content":"nice"},
				{"role":"user","content":"what next?"}
			]}`)

			sent := upstream.lastBody()
			Expect(sent["model"]).To(Equal("gpt-4o-mini"))
			Expect(sent["instructions"]).To(Equal(playgroundInstructions))
			Expect(sent).NotTo(HaveKey("reasoning"))
			Expect(sent["tools"]).To(HaveLen(2))

			input, ok := sent["input"].(string)
			Expect(ok).To(BeTrue())
			Expect(input).To(HavePrefix("SYSTEM RULES:\n"))
			Expect(input).To(ContainSubstring("User: look [image omitted]\nYurie: nice\nUser: what next?"))
			Expect(input).To(HaveSuffix("\nYurie:"))
			Expect(input).NotTo(ContainSubstring("AAAA"))
		})

		It("requests high reasoning effort from reasoning models", func() {
			upstream = newUpstream(sseFrames())
			r, pub = newTestRelay(upstream.server.URL, Config{})

			post(r, RoutePlayground, `{"model":"gpt-5","messages":[{"role":"user","content":"think hard"}]}`)
			Expect(upstream.lastBody()["reasoning"]).To(Equal(map[string]any{"effort": "high"}))
		})

		It("writes errors inline", func() {
			upstream = newUpstream(sseFrames(
				frame("response.output_text.delta", `{"delta":"a"}`),
				frame("response.failed", `{"response":{"error":{"message":"boom"}}}`),
			))
			r, pub = newTestRelay(upstream.server.URL, Config{})

			_, body := post(r, RoutePlayground, `{"messages":[{"role":"user","content":"hi"}]}`)
			Expect(body).To(Equal("a\n[error] boom"))
		})

		It("streams a generated image when the last message asks for one", func() {
			upstream = newUpstream(sseFrames(
				frame("image_generation.partial_image", `{"b64_json":"UDE="}`),
				frame("image_generation.completed", `{"b64_json":"RklOQUw="}`),
			))
			r, pub = newTestRelay(upstream.server.URL, Config{})

			_, body := post(r, RoutePlayground, `{"messages":[{"role":"user","content":"/img a red fox"}]}`)
			Expect(body).To(Equal("Here is your image.\n" +
				llm.ImageSentinel("UDE=") + "\n" +
				llm.ImageSentinel("RklOQUw=") + "\n"))

			sent := upstream.lastBody()
			Expect(upstream.lastPath()).To(Equal("/images/generations"))
			Expect(sent["prompt"]).To(Equal("a red fox"))
			Expect(sent["stream"]).To(BeTrue())
			Expect(sent["partial_images"]).To(BeNumerically("==", 2))
		})
	})
})

// failingFramer fails every write, as a gone client does.
type failingFramer struct {
	frames int
	closed bool
}

func (f *failingFramer) frame(llm.StreamEvent) error {
	f.frames++
	return errors.New("broken pipe")
}

func (f *failingFramer) close(llm.StreamEvent) { f.closed = true }

var _ = Describe("pump", func() {
	It("aborts upstream after the first failed write and drains the stream", func() {
		done := make(chan struct{})
		upstream := newUpstream(tickingDeltas(done))
		defer upstream.server.Close()

		client, err := openai.New(openai.Config{APIKey: "sk-test", BaseURL: upstream.server.URL})
		Expect(err).NotTo(HaveOccurred())

		stream, err := client.StreamResponse(context.Background(), openai.ResponseRequest{Model: "m", Input: json.RawMessage(`"hi"`)})
		Expect(err).NotTo(HaveOccurred())

		f := &failingFramer{}
		t := newTurn(RouteChat, "m")
		pump(stream, f, t, logger.Nop())

		Expect(f.frames).To(Equal(1))
		Expect(f.closed).To(BeFalse())
		Expect(t.status).To(Equal(eventstream.StatusAborted))
		Eventually(done, testTimeout).Should(BeClosed())
	})
})

var _ = Describe("playgroundPrompt", func() {
	It("keeps the newest characters when the history is too long", func() {
		long := strings.Repeat("é", maxPromptChars)
		prompt := playgroundPrompt([]llm.ChatMessage{{Role: llm.RoleUser, Content: long}})

		Expect([]rune(prompt)).To(HaveLen(maxPromptChars))
		Expect(prompt).To(HaveSuffix("\nYurie:"))
		Expect(prompt).NotTo(ContainSubstring("SYSTEM RULES"))
	})
})
