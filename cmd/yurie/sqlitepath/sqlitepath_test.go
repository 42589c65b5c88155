package sqlitepath

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ResolveSQLitePath", func() {
	var (
		home string
		cwd  string
	)

	touch := func(path string) {
		Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
		Expect(os.WriteFile(path, nil, 0o600)).To(Succeed())
	}

	BeforeEach(func() {
		home = GinkgoT().TempDir()
		cwd = GinkgoT().TempDir()
		GinkgoT().Setenv("HOME", home)
		GinkgoT().Setenv("XDG_DATA_HOME", "")
		chdir(cwd)
	})

	It("prefers an explicit path", func() {
		path, err := ResolveSQLitePath(" /tmp/custom.db ")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/tmp/custom.db"))
	})

	It("resolves ~/.yurie/history.db when present", func() {
		touch(filepath.Join(home, ".yurie", "history.db"))

		path, err := ResolveSQLitePath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(filepath.Join(home, ".yurie", "history.db")))
	})

	It("prefers XDG data over home", func() {
		xdg := GinkgoT().TempDir()
		GinkgoT().Setenv("XDG_DATA_HOME", xdg)
		touch(filepath.Join(home, ".yurie", "history.db"))
		touch(filepath.Join(xdg, "yurie", "history.db"))

		path, err := ResolveSQLitePath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(filepath.Join(xdg, "yurie", "history.db")))
	})

	It("prefers the project directory over everything else", func() {
		touch(filepath.Join(home, ".yurie", "history.db"))
		touch(filepath.Join(cwd, ".yurie", "history.db"))

		path, err := ResolveSQLitePath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(filepath.Join(".yurie", "history.db")))
	})

	It("ignores directories", func() {
		Expect(os.MkdirAll(filepath.Join(home, ".yurie", "history.db"), 0o755)).To(Succeed())

		_, err := ResolveSQLitePath("")
		Expect(err).To(MatchError(ErrNotFound))
	})

	It("fails when nothing exists", func() {
		_, err := ResolveSQLitePath("")
		Expect(err).To(MatchError(ErrNotFound))
	})
})

func chdir(dir string) {
	orig, err := os.Getwd()
	Expect(err).NotTo(HaveOccurred())
	Expect(os.Chdir(dir)).To(Succeed())
	DeferCleanup(os.Chdir, orig)
}
