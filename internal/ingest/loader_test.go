package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"trustgate/internal/domain"
	"trustgate/internal/storage"
	"trustgate/internal/trust"
)

// Well-formed Solana addresses (base58, 32 bytes decoded).
const (
	addrSystem = "11111111111111111111111111111111"
	addrWSOL   = "So11111111111111111111111111111111111111112"
	addrUSDC   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

type LoaderSuite struct {
	suite.Suite
	store  *storage.InMemoryRegistryStore
	loader *Loader
	ctx    context.Context
	dir    string
}

func TestLoaderSuite(t *testing.T) {
	suite.Run(t, new(LoaderSuite))
}

func (s *LoaderSuite) SetupTest() {
	s.store = storage.NewInMemoryRegistryStore()
	s.loader = New(s.store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.ctx = context.Background()
	s.dir = s.T().TempDir()
}

func (s *LoaderSuite) writeSnapshot(name, content string) string {
	path := filepath.Join(s.dir, name)
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validSnapshot = `{"registry":{"slug":"alpha-scores","name":"Alpha Scores","context":"copy_trading","version":"1"}}
{"entity":{"type":"wallet","address":"` + addrSystem + `","display_name":"Wallet One"},"score":0.8,"computed_at":"2026-08-01T00:00:00Z"}
{"entity":{"type":"token","address":"` + addrWSOL + `"},"score":0.4,"attributes":{"volume":"high"}}
`

func (s *LoaderSuite) TestLoadFile() {
	s.Run("loads registry and entries", func() {
		path := s.writeSnapshot("alpha.jsonl", validSnapshot)

		count, err := s.loader.LoadFile(s.ctx, path)
		s.Require().NoError(err)
		s.Equal(2, count)

		entity, err := s.store.FindEntity(s.ctx, domain.ChainSolana, domain.EntityTypeWallet, addrSystem)
		s.Require().NoError(err)
		s.Equal("Wallet One", entity.DisplayName)

		entries, err := s.store.FindEntries(s.ctx, storage.EntryFilter{Context: trust.ContextCopyTrading})
		s.Require().NoError(err)
		s.Len(entries, 2)

		infos, err := s.store.ListRegistries(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(infos, 1)
		s.Equal("alpha-scores", infos[0].Registry.Slug)
		s.NotNil(infos[0].Registry.LastIngestedAt)
	})

	s.Run("reloading is idempotent", func() {
		path := s.writeSnapshot("alpha-again.jsonl", validSnapshot)

		_, err := s.loader.LoadFile(s.ctx, path)
		s.Require().NoError(err)
		_, err = s.loader.LoadFile(s.ctx, path)
		s.Require().NoError(err)

		entries, err := s.store.FindEntries(s.ctx, storage.EntryFilter{Context: trust.ContextCopyTrading})
		s.Require().NoError(err)
		s.Len(entries, 2)
	})

	s.Run("rejects a missing header", func() {
		path := s.writeSnapshot("empty.jsonl", "")
		_, err := s.loader.LoadFile(s.ctx, path)
		s.Error(err)
	})

	s.Run("rejects a header without slug or context", func() {
		path := s.writeSnapshot("bad-header.jsonl", `{"registry":{"name":"No Slug"}}`+"\n")
		_, err := s.loader.LoadFile(s.ctx, path)
		s.Error(err)
	})

	s.Run("rejects an unknown entity type", func() {
		content := `{"registry":{"slug":"bad-type","context":"copy_trading"}}
{"entity":{"type":"castle","address":"` + addrSystem + `"},"score":0.5}
`
		path := s.writeSnapshot("bad-type.jsonl", content)
		_, err := s.loader.LoadFile(s.ctx, path)
		s.Require().Error(err)
		s.Contains(err.Error(), "unknown entity type")
	})

	s.Run("rejects a malformed address", func() {
		content := `{"registry":{"slug":"bad-addr","context":"copy_trading"}}
{"entity":{"type":"wallet","address":"not-base58-0OIl"},"score":0.5}
`
		path := s.writeSnapshot("bad-addr.jsonl", content)
		_, err := s.loader.LoadFile(s.ctx, path)
		s.Error(err)
	})
}

func (s *LoaderSuite) TestLoadDir() {
	s.Run("loads every snapshot in the directory", func() {
		s.writeSnapshot("one.jsonl", validSnapshot)
		s.writeSnapshot("two.jsonl", `{"registry":{"slug":"beta-scores","context":"rugger_check"}}
{"entity":{"type":"dev","address":"`+addrUSDC+`"},"score":0.9}
`)

		total, err := s.loader.LoadDir(s.ctx, s.dir)
		s.Require().NoError(err)
		s.Equal(3, total)

		infos, err := s.store.ListRegistries(s.ctx)
		s.Require().NoError(err)
		s.Len(infos, 2)
	})

	s.Run("empty directory is an error", func() {
		_, err := s.loader.LoadDir(s.ctx, s.T().TempDir())
		s.Error(err)
	})
}
