package server_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/isocode-ai/isocode/citest/testutil"
	"github.com/isocode-ai/isocode/pkg/types"
)

func postSSE(baseURL, path string, body map[string]any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	return http.DefaultClient.Do(req)
}

func readEvents(resp *http.Response) []types.Event {
	defer resp.Body.Close()
	var events []types.Event
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev types.Event
		if err := json.Unmarshal([]byte(line[len("data: "):]), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events
}

var _ = Describe("SSE streaming", func() {
	var ts *testutil.TestServer

	AfterEach(func() {
		if ts != nil {
			ts.Close()
			ts = nil
		}
	})

	Describe("chat mode", func() {
		It("sets the SSE content type", func() {
			var err error
			ts, err = testutil.StartServer(&testutil.FakeLLM{Deltas: []string{"x"}})
			Expect(err).NotTo(HaveOccurred())

			resp, err := postSSE(ts.BaseURL, "/chat", map[string]any{"message": "hi", "model": "m"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Header.Get("Content-Type")).To(ContainSubstring("text/event-stream"))
			resp.Body.Close()
		})

		It("frames deltas as chunk events terminated by done", func() {
			var err error
			ts, err = testutil.StartServer(&testutil.FakeLLM{Deltas: []string{"hel", "lo"}})
			Expect(err).NotTo(HaveOccurred())

			resp, err := postSSE(ts.BaseURL, "/chat", map[string]any{"message": "hi", "model": "m"})
			Expect(err).NotTo(HaveOccurred())

			events := readEvents(resp)
			Expect(events).To(HaveLen(3))
			Expect(events[0].Type).To(Equal(types.EventChunk))
			Expect(events[0].Content).To(Equal("hel"))
			Expect(events[2].Type).To(Equal(types.EventDone))
		})
	})

	Describe("agent mode", func() {
		It("emits thought, action, observation, final in step order", func() {
			var err error
			ts, err = testutil.StartServer(&testutil.FakeLLM{Replies: []string{
				`{"type":"thought","content":"PLAN:\n1. look around"}`,
				`{"type":"action","tool":"list_files","args":{}}`,
				`{"type":"thought","content":"Completed task 1"}`,
				`{"type":"final","content":"all clear"}`,
			}})
			Expect(err).NotTo(HaveOccurred())

			resp, err := postSSE(ts.BaseURL, "/chat", map[string]any{
				"message":   "look around",
				"autoMode":  true,
				"model":     "m",
				"sessionId": "sse-agent",
			})
			Expect(err).NotTo(HaveOccurred())

			events := readEvents(resp)
			var kinds []string
			for _, ev := range events {
				kinds = append(kinds, ev.Type)
			}
			Expect(kinds).To(Equal([]string{"thought", "action", "observation", "thought", "final"}))
			Expect(events[len(events)-1].Content).To(Equal("all clear"))
		})

		It("ends the stream at a diff request and resumes on approval", func() {
			var err error
			ts, err = testutil.StartServer(&testutil.FakeLLM{Replies: []string{
				`{"type":"action","tool":"write_file","args":{"path":"out.txt","content":"payload\n"}}`,
				`{"type":"final","content":"file written"}`,
			}})
			Expect(err).NotTo(HaveOccurred())

			resp, err := postSSE(ts.BaseURL, "/chat", map[string]any{
				"message":   "write out.txt",
				"autoMode":  true,
				"model":     "m",
				"sessionId": "sse-diff",
			})
			Expect(err).NotTo(HaveOccurred())

			events := readEvents(resp)
			Expect(events).NotTo(BeEmpty())
			last := events[len(events)-1]
			Expect(last.Type).To(Equal(types.EventDiffRequest))
			Expect(last.FilePath).To(Equal("out.txt"))

			resp, err = postSSE(ts.BaseURL, "/chat", map[string]any{
				"sessionId": "sse-diff",
				"decision":  "approve",
				"autoMode":  true,
			})
			Expect(err).NotTo(HaveOccurred())

			events = readEvents(resp)
			Expect(events[len(events)-1].Type).To(Equal(types.EventFinal))
		})
	})
})
