package servecmder

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/yurie-chat/yurie/pkg/config"
	"github.com/yurie-chat/yurie/pkg/eventstream/kafka"
	"github.com/yurie-chat/yurie/pkg/eventstream/nop"
	"github.com/yurie-chat/yurie/pkg/logger"
)

var _ = Describe("NewServeCmd", func() {
	It("registers every serve flag", func() {
		cmd := NewServeCmd()
		for _, key := range serveFlags {
			name := config.Flags[key].Name
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
	})

	It("defaults flags from the built-in config", func() {
		cmd := NewServeCmd()
		Expect(cmd.Flags().Lookup("listen").DefValue).To(Equal(":8080"))
		Expect(cmd.Flags().Lookup("model").DefValue).To(Equal("gpt-5"))
		Expect(cmd.Flags().Lookup("max-duration").DefValue).To(Equal("1m0s"))
	})

	It("rejects positional arguments", func() {
		cmd := NewServeCmd()
		cmd.SetArgs([]string{"extra"})
		Expect(cmd.Execute()).To(HaveOccurred())
	})
})

var _ = Describe("newPublisher", func() {
	log := logger.Nop()

	It("uses the nop publisher by default", func() {
		p, err := newPublisher(config.EventStreamConfig{}, log)
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeAssignableToTypeOf(&nop.Publisher{}))
	})

	It("builds a kafka publisher", func() {
		p, err := newPublisher(config.EventStreamConfig{
			Provider: config.EventStreamKafka,
			Brokers:  "localhost:9092, localhost:9093",
			Topic:    "yurie.turns",
		}, log)
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeAssignableToTypeOf(&kafka.Publisher{}))
		Expect(p.Close()).To(Succeed())
	})

	It("requires kafka brokers", func() {
		_, err := newPublisher(config.EventStreamConfig{Provider: config.EventStreamKafka, Topic: "t"}, log)
		Expect(err).To(MatchError(kafka.ErrNoBrokers))
	})

	It("rejects unknown providers", func() {
		_, err := newPublisher(config.EventStreamConfig{Provider: "nats"}, log)
		Expect(err).To(MatchError(ContainSubstring(`unsupported eventstream provider: "nats"`)))
	})
})

var _ = Describe("newLogger", func() {
	It("writes pretty records to the console and JSON records to the log file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "relay.log")
		var console bytes.Buffer

		log, closeLog, err := newLogger(false, config.RelayConfig{LogFile: path}, &console)
		Expect(err).NotTo(HaveOccurred())
		log.Info("relay ready", "listen", ":8080")
		Expect(closeLog()).To(Succeed())

		Expect(console.String()).To(ContainSubstring("relay ready"))
		Expect(console.String()).NotTo(ContainSubstring(`"msg"`))

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"msg":"relay ready"`))
		Expect(string(data)).To(ContainSubstring(`"listen":":8080"`))
	})

	It("applies the log level to every sink", func() {
		path := filepath.Join(GinkgoT().TempDir(), "relay.log")
		var console bytes.Buffer

		log, closeLog, err := newLogger(true, config.RelayConfig{LogFile: path, LogLevel: "warn"}, &console)
		Expect(err).NotTo(HaveOccurred())
		log.Info("quiet")
		log.Warn("loud")
		Expect(closeLog()).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).NotTo(ContainSubstring("quiet"))
		Expect(string(data)).To(ContainSubstring("loud"))
		Expect(console.String()).NotTo(ContainSubstring("quiet"))
		Expect(console.String()).To(ContainSubstring("loud"))
	})

	It("rejects unknown levels", func() {
		_, _, err := newLogger(false, config.RelayConfig{LogLevel: "chatty"}, &bytes.Buffer{})
		Expect(err).To(MatchError(ContainSubstring("unknown log level")))
	})

	It("fails when the log file cannot be opened", func() {
		path := filepath.Join(GinkgoT().TempDir(), "missing", "relay.log")
		_, _, err := newLogger(false, config.RelayConfig{LogFile: path}, &bytes.Buffer{})
		Expect(err).To(MatchError(ContainSubstring("opening log file")))
	})
})
