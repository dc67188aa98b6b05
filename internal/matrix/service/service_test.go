package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"clearvet/internal/matrix/models"
	"clearvet/internal/matrix/store"
	dErrors "clearvet/pkg/domain-errors"
)

type MatrixServiceSuite struct {
	suite.Suite
	ctx     context.Context
	service *Service
}

func (s *MatrixServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.service = New(store.NewInMemory(), nil)
}

func TestMatrixServiceSuite(t *testing.T) {
	suite.Run(t, new(MatrixServiceSuite))
}

func (s *MatrixServiceSuite) createMatrix() *models.RuleMatrix {
	m, err := s.service.CreateMatrix(s.ctx, uuid.New(), "Default Matrix", "baseline rules")
	s.Require().NoError(err)
	return m
}

func (s *MatrixServiceSuite) TestCreateMatrix() {
	s.Run("new matrices start inactive", func() {
		m := s.createMatrix()
		s.False(m.Active)
		s.Equal("Default Matrix", m.Name)
	})

	s.Run("name is required", func() {
		_, err := s.service.CreateMatrix(s.ctx, uuid.New(), "   ", "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("client is required", func() {
		_, err := s.service.CreateMatrix(s.ctx, uuid.Nil, "Matrix", "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *MatrixServiceSuite) TestSetActive() {
	s.Run("activate and deactivate round-trip", func() {
		m := s.createMatrix()

		activated, err := s.service.SetActive(s.ctx, m.ID, true)
		s.Require().NoError(err)
		s.True(activated.Active)

		deactivated, err := s.service.SetActive(s.ctx, m.ID, false)
		s.Require().NoError(err)
		s.False(deactivated.Active)
	})

	s.Run("deactivated matrix stays retrievable", func() {
		m := s.createMatrix()
		_, err := s.service.SetActive(s.ctx, m.ID, false)
		s.Require().NoError(err)

		found, err := s.service.GetMatrix(s.ctx, m.ID)
		s.Require().NoError(err)
		s.Equal(m.ID, found.ID)
	})

	s.Run("unknown matrix", func() {
		_, err := s.service.SetActive(s.ctx, uuid.New(), true)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *MatrixServiceSuite) TestAddRule() {
	params := func(order int) RuleParams {
		return RuleParams{Order: order, Severity: "critical", Decision: "auto_reject"}
	}

	s.Run("adds a rule with parsed condition", func() {
		m := s.createMatrix()
		p := params(1)
		p.ConditionJSON = json.RawMessage(`{"field":"finding_count","operator":"greater_than","value":1}`)

		rule, err := s.service.AddRule(s.ctx, m.ID, p)
		s.Require().NoError(err)
		s.Equal(models.DecisionAutoReject, rule.Decision)
		s.Require().NotNil(rule.Condition)
		s.Equal("finding_count", rule.Condition.Field)

		found, err := s.service.GetMatrix(s.ctx, m.ID)
		s.Require().NoError(err)
		s.Require().Len(found.Rules, 1)
	})

	s.Run("rules come back in evaluation order", func() {
		m := s.createMatrix()
		for _, order := range []int{30, 10, 20} {
			_, err := s.service.AddRule(s.ctx, m.ID, params(order))
			s.Require().NoError(err)
		}
		found, err := s.service.GetMatrix(s.ctx, m.ID)
		s.Require().NoError(err)
		s.Require().Len(found.Rules, 3)
		s.Equal(10, found.Rules[0].Order)
		s.Equal(30, found.Rules[2].Order)
	})

	s.Run("duplicate order within a matrix is rejected", func() {
		m := s.createMatrix()
		_, err := s.service.AddRule(s.ctx, m.ID, params(5))
		s.Require().NoError(err)

		_, err = s.service.AddRule(s.ctx, m.ID, params(5))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("same order in different matrices is fine", func() {
		m1 := s.createMatrix()
		m2 := s.createMatrix()
		_, err := s.service.AddRule(s.ctx, m1.ID, params(5))
		s.Require().NoError(err)
		_, err = s.service.AddRule(s.ctx, m2.ID, params(5))
		s.Require().NoError(err)
	})

	s.Run("invalid decision", func() {
		m := s.createMatrix()
		_, err := s.service.AddRule(s.ctx, m.ID, RuleParams{Order: 1, Decision: "reject"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("invalid severity", func() {
		m := s.createMatrix()
		_, err := s.service.AddRule(s.ctx, m.ID, RuleParams{Order: 1, Severity: "severe", Decision: "auto_reject"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("invalid condition JSON", func() {
		m := s.createMatrix()
		p := params(1)
		p.ConditionJSON = json.RawMessage(`{"field":"x","operator":"matches","value":1}`)
		_, err := s.service.AddRule(s.ctx, m.ID, p)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown matrix", func() {
		_, err := s.service.AddRule(s.ctx, uuid.New(), params(1))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *MatrixServiceSuite) TestUpdateRule() {
	s.Run("replaces fields and clears the ones omitted", func() {
		m := s.createMatrix()
		years := 5
		rule, err := s.service.AddRule(s.ctx, m.ID, RuleParams{
			Order: 1, Severity: "critical", LookbackYears: &years, Decision: "auto_reject",
		})
		s.Require().NoError(err)

		updated, err := s.service.UpdateRule(s.ctx, rule.ID, RuleParams{
			Order: 2, OffenseType: "dui", Decision: "manual_review",
		})
		s.Require().NoError(err)
		s.Equal(2, updated.Order)
		s.Equal("dui", updated.OffenseType)
		s.Equal(models.DecisionManualReview, updated.Decision)
		s.Empty(updated.Severity)
		s.Nil(updated.LookbackYears)
	})

	s.Run("moving onto a taken order is rejected", func() {
		m := s.createMatrix()
		_, err := s.service.AddRule(s.ctx, m.ID, RuleParams{Order: 1, Decision: "auto_approve"})
		s.Require().NoError(err)
		second, err := s.service.AddRule(s.ctx, m.ID, RuleParams{Order: 2, Decision: "auto_approve"})
		s.Require().NoError(err)

		_, err = s.service.UpdateRule(s.ctx, second.ID, RuleParams{Order: 1, Decision: "auto_approve"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown rule", func() {
		_, err := s.service.UpdateRule(s.ctx, uuid.New(), RuleParams{Order: 1, Decision: "auto_approve"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *MatrixServiceSuite) TestListMatrices() {
	clientID := uuid.New()
	m1, err := s.service.CreateMatrix(s.ctx, clientID, "First", "")
	s.Require().NoError(err)
	_, err = s.service.CreateMatrix(s.ctx, clientID, "Second", "")
	s.Require().NoError(err)
	_, err = s.service.CreateMatrix(s.ctx, uuid.New(), "Other Client", "")
	s.Require().NoError(err)

	_, err = s.service.SetActive(s.ctx, m1.ID, true)
	s.Require().NoError(err)

	out, err := s.service.ListMatrices(s.ctx, clientID)
	s.Require().NoError(err)
	s.Len(out, 2)
}
