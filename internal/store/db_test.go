package store_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/scmxpert/internal/store"
	"procodus.dev/scmxpert/internal/store/storetest"
)

var _ = Describe("Database", func() {
	Describe("DBConfig", func() {
		It("should build a postgres DSN", func() {
			cfg := &store.DBConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "scm",
				Password: "secret",
				DBName:   "scmxpert",
				SSLMode:  "disable",
			}
			Expect(cfg.DSN()).To(Equal("host=localhost port=5432 user=scm password=secret dbname=scmxpert sslmode=disable"))
		})

		It("should use the path as the sqlite DSN", func() {
			cfg := &store.DBConfig{Driver: store.DriverSQLite, Path: "scm.db"}
			Expect(cfg.DSN()).To(Equal("scm.db"))
		})
	})

	Describe("NewDB", func() {
		It("should return error when config is nil", func() {
			db, err := store.NewDB(nil)
			Expect(err).To(MatchError("database config cannot be nil"))
			Expect(db).To(BeNil())
		})

		It("should return error when logger is nil", func() {
			db, err := store.NewDB(&store.DBConfig{Driver: store.DriverSQLite, Path: "x.db"})
			Expect(err).To(MatchError("logger cannot be nil"))
			Expect(db).To(BeNil())
		})

		It("should reject an empty sqlite path", func() {
			_, err := store.NewDB(&store.DBConfig{Logger: storetest.Logger(), Driver: store.DriverSQLite})
			Expect(err).To(MatchError("sqlite path cannot be empty"))
		})

		It("should reject unknown drivers", func() {
			_, err := store.NewDB(&store.DBConfig{Logger: storetest.Logger(), Driver: "oracle"})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported database driver"))
		})

		It("should open and migrate an in-memory database", func() {
			db, err := storetest.NewDB()
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(func() {
				Expect(store.CloseDB(db, storetest.Logger())).To(Succeed())
			})

			for _, table := range []string{"users", "shipments", "iot_devices", "analytics"} {
				Expect(db.Migrator().HasTable(table)).To(BeTrue(), table)
			}
		})
	})

	Describe("CloseDB", func() {
		It("should accept a nil database", func() {
			Expect(store.CloseDB(nil, storetest.Logger())).To(Succeed())
		})
	})
})
