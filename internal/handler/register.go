package handler

import (
	"go.uber.org/zap"

	"github.com/censusrm/caseprocessor/internal/domain"
	"github.com/censusrm/caseprocessor/internal/ident"
)

// RegisterAll binds every known inbound event type to its handler.
func RegisterAll(router *Router, caseRefs *ident.CaseRefGenerator, logger *zap.Logger) {
	router.Register(domain.SampleLoaded, NewSampleLoadHandler(caseRefs, logger))
	router.Register(domain.ResponseReceived, NewReceiptHandler(logger))
	router.Register(domain.RefusalReceived, NewRefusalHandler(logger))
	router.Register(domain.QuestionnaireLinked, NewLinkedHandler(caseRefs, logger))
	router.Register(domain.FulfilmentRequested, NewFulfilmentHandler(caseRefs, logger))
	router.Register(domain.AddressNotValid, NewInvalidAddressHandler(logger))
	router.Register(domain.FieldCaseUpdated, NewFieldUpdateHandler(logger))
	router.Register(domain.NewAddressReported, NewNewAddressHandler(caseRefs, logger))
	router.Register(domain.UndeliveredMailReported, NewUndeliveredHandler(logger))
	router.Register(domain.CCSAddressListed, NewCCSPropertyHandler(caseRefs, logger))
}
