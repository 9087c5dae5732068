package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/custodia-labs/plancite/internal/core/domain"
)

func unavailable(what string) Error {
	return NewError(fiber.StatusServiceUnavailable, what+" is not configured")
}

func (s *Server) handleHealthz(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"result": "ok"})
}

func (s *Server) handleSearch(c *fiber.Ctx) error {
	var req SearchRequest
	if c.BodyParser(&req) != nil {
		return ErrBadRequest()
	}
	if errs := validateRequest(&req); len(errs) > 0 {
		return NewValidationError(errs)
	}

	resp, err := s.ports.Retrieval.Retrieve(c.UserContext(), req.Query, req.options())
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func (s *Server) handleAsk(c *fiber.Ctx) error {
	if s.ports.Answer == nil {
		return unavailable("answer generation")
	}
	var req AskRequest
	if c.BodyParser(&req) != nil {
		return ErrBadRequest()
	}
	if errs := validateRequest(&req); len(errs) > 0 {
		return NewValidationError(errs)
	}

	ans, err := s.ports.Answer.Answer(c.UserContext(), req.Question, domain.AnswerOptions{
		Search: domain.SearchOptions{
			TopK:   req.TopK,
			Filter: domain.MetadataFilter{DocumentIDs: req.DocumentIDs},
		},
		MaxContextTokens: req.MaxContextTokens,
	})
	if err != nil {
		return err
	}
	return c.JSON(ans)
}

func (s *Server) handleHighlight(c *fiber.Ctx) error {
	if s.ports.Highlight == nil {
		return unavailable("highlighting")
	}
	var q HighlightQuery
	if c.QueryParser(&q) != nil {
		return NewError(fiber.StatusBadRequest, "invalid query string")
	}
	if errs := validateRequest(&q); len(errs) > 0 {
		return NewValidationError(errs)
	}
	if q.Scale == 0 {
		q.Scale = defaultScale
	}

	h, err := s.ports.Highlight.Highlight(c.UserContext(), c.Params("id"), q.Scale)
	if err != nil {
		return err
	}
	return c.JSON(h)
}

func (s *Server) handleStructure(c *fiber.Ctx) error {
	if s.ports.Structure == nil {
		return unavailable("clustering")
	}
	var req StructureRequest
	if len(c.Body()) > 0 && c.BodyParser(&req) != nil {
		return ErrBadRequest()
	}
	if errs := validateRequest(&req); len(errs) > 0 {
		return NewValidationError(errs)
	}

	res, err := s.ports.Structure.Cluster(c.UserContext(), req.DocumentIDs, req.Threshold)
	if err != nil {
		return err
	}
	if res.InsufficientContent {
		return domain.ErrInsufficientContent
	}
	return c.JSON(res)
}

func (s *Server) handleListDocuments(c *fiber.Ctx) error {
	if s.ports.Indexing == nil {
		return unavailable("document registry")
	}
	docs, err := s.ports.Indexing.ListDocuments(c.UserContext())
	if err != nil {
		return err
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	return c.JSON(fiber.Map{"documents": docs, "count": len(docs)})
}

func (s *Server) handleDeleteDocument(c *fiber.Ctx) error {
	if s.ports.Indexing == nil {
		return unavailable("document registry")
	}
	if err := s.ports.Indexing.DeleteDocument(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
