package server_test

import (
	"encoding/json"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/isocode-ai/isocode/citest/testutil"
)

var _ = Describe("HTTP endpoints", func() {
	var ts *testutil.TestServer

	BeforeEach(func() {
		var err error
		ts, err = testutil.StartServer(&testutil.FakeLLM{})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		ts.Close()
	})

	getJSON := func(path string) map[string]any {
		resp, err := http.Get(ts.BaseURL + path)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())

		var decoded map[string]any
		Expect(json.Unmarshal(body, &decoded)).To(Succeed())
		return decoded
	}

	It("reports health", func() {
		decoded := getJSON("/health")
		Expect(decoded["ok"]).To(BeTrue())
		Expect(decoded["provider"]).To(Equal("fake"))
	})

	It("lists models", func() {
		decoded := getJSON("/models")
		models := decoded["models"].([]any)
		Expect(models).To(HaveLen(1))
		Expect(models[0].(map[string]any)["id"]).To(Equal("fake-model"))
	})

	It("lists sessions", func() {
		decoded := getJSON("/sessions")
		Expect(decoded).To(HaveKey("active"))
		Expect(decoded).To(HaveKey("saved"))
	})

	It("inspects the codebase index", func() {
		decoded := getJSON("/codebase")
		Expect(decoded).To(HaveKey("total"))
	})

	It("reports external tool servers", func() {
		decoded := getJSON("/mcp-status")
		Expect(decoded).To(HaveKey("servers"))
	})
})
