package initcmder_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/javajedis/legalconnect-ai/cmd/legalconnect/init"
	"github.com/javajedis/legalconnect-ai/pkg/config"
)

func loadConfig(dir string) *config.Config {
	var cfg config.Config
	_, err := toml.DecodeFile(filepath.Join(dir, ".legalconnect", "config.toml"), &cfg)
	Expect(err).NotTo(HaveOccurred())
	return &cfg
}

var _ = Describe("NewInitCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Use).To(Equal("init"))
	})

	It("rejects any arguments", func() {
		cmd := initcmder.NewInitCmd()
		err := cmd.Args(cmd, []string{"extra"})
		Expect(err).To(HaveOccurred())
	})

	It("has a --preset flag", func() {
		cmd := initcmder.NewInitCmd()
		f := cmd.Flags().Lookup("preset")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal(""))
	})
})

var _ = Describe("Init command execution", func() {
	var (
		tmpDir  string
		origDir string
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "legalconnect-init-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		err = os.Chdir(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		err := os.Chdir(origDir)
		Expect(err).NotTo(HaveOccurred())
		os.RemoveAll(tmpDir)
	})

	It("creates a .legalconnect directory in the current directory", func() {
		cmd := initcmder.NewInitCmd()
		cmd.SetArgs([]string{})
		err := cmd.Execute()
		Expect(err).NotTo(HaveOccurred())

		info, err := os.Stat(filepath.Join(tmpDir, ".legalconnect"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())
	})

	It("does not write a config.toml without --preset", func() {
		cmd := initcmder.NewInitCmd()
		cmd.SetArgs([]string{})
		err := cmd.Execute()
		Expect(err).NotTo(HaveOccurred())

		_, err = os.Stat(filepath.Join(tmpDir, ".legalconnect", "config.toml"))
		Expect(os.IsNotExist(err)).To(BeTrue())
	})

	It("succeeds when .legalconnect directory already exists", func() {
		err := os.MkdirAll(filepath.Join(tmpDir, ".legalconnect"), 0o755)
		Expect(err).NotTo(HaveOccurred())

		cmd := initcmder.NewInitCmd()
		cmd.SetArgs([]string{})
		err = cmd.Execute()
		Expect(err).NotTo(HaveOccurred())
	})

	It("does not overwrite existing contents when already initialized", func() {
		dir := filepath.Join(tmpDir, ".legalconnect")
		err := os.MkdirAll(dir, 0o755)
		Expect(err).NotTo(HaveOccurred())

		sessionFile := filepath.Join(dir, "session.json")
		err = os.WriteFile(sessionFile, []byte(`{"session_id":"abc"}`), 0o644)
		Expect(err).NotTo(HaveOccurred())

		cmd := initcmder.NewInitCmd()
		cmd.SetArgs([]string{})
		err = cmd.Execute()
		Expect(err).NotTo(HaveOccurred())

		data, err := os.ReadFile(sessionFile)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(`{"session_id":"abc"}`))
	})

	Describe("--preset with provider presets", func() {
		It("creates config.toml with the gemini preset", func() {
			cmd := initcmder.NewInitCmd()
			cmd.SetArgs([]string{"--preset", "gemini"})
			err := cmd.Execute()
			Expect(err).NotTo(HaveOccurred())

			cfg := loadConfig(tmpDir)
			Expect(cfg.Version).To(Equal(config.CurrentV))
			Expect(cfg.LLM.Provider).To(Equal("gemini"))
			Expect(cfg.Embedding.Provider).To(Equal("gemini"))
			Expect(cfg.Embedding.Dimensions).To(Equal(uint(768)))
		})

		It("creates config.toml with the ollama preset", func() {
			cmd := initcmder.NewInitCmd()
			cmd.SetArgs([]string{"--preset", "ollama"})
			err := cmd.Execute()
			Expect(err).NotTo(HaveOccurred())

			cfg := loadConfig(tmpDir)
			Expect(cfg.LLM.Provider).To(Equal("ollama"))
			Expect(cfg.LLM.Target).To(Equal("http://localhost:11434"))
			Expect(cfg.Embedding.Provider).To(Equal("ollama"))
			Expect(cfg.Embedding.Model).To(Equal("nomic-embed-text"))
			Expect(cfg.Embedding.Dimensions).To(Equal(uint(768)))
		})

		It("rejects unknown preset names", func() {
			cmd := initcmder.NewInitCmd()
			cmd.SetArgs([]string{"--preset", "invalid-provider"})
			err := cmd.Execute()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unknown preset"))
		})
	})

	Describe("--preset with remote URL", func() {
		It("fetches and writes a remote config.toml", func() {
			remoteCfg := `version = 0

[llm]
provider = "ollama"
target = "http://llm.internal:11434"
model = "llama3.2"

[embedding]
provider = "ollama"
target = "http://llm.internal:11434"
model = "nomic-embed-text"
dimensions = 768
`
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				fmt.Fprint(w, remoteCfg)
			}))
			defer server.Close()

			cmd := initcmder.NewInitCmd()
			cmd.SetArgs([]string{"--preset", server.URL})
			err := cmd.Execute()
			Expect(err).NotTo(HaveOccurred())

			cfg := loadConfig(tmpDir)
			Expect(cfg.LLM.Target).To(Equal("http://llm.internal:11434"))
			Expect(cfg.Embedding.Model).To(Equal("nomic-embed-text"))
		})

		It("fails when the remote returns a non-200 status", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "not found", http.StatusNotFound)
			}))
			defer server.Close()

			cmd := initcmder.NewInitCmd()
			cmd.SetArgs([]string{"--preset", server.URL})
			err := cmd.Execute()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("status 404"))
		})
	})
})
