package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fundilink/FundiLink/app/controllers"
	"github.com/fundilink/FundiLink/app/repository"
	"github.com/fundilink/FundiLink/internal/pkg/constants"
	"github.com/fundilink/FundiLink/internal/pkg/database"
	"github.com/fundilink/FundiLink/internal/pkg/middleware"
	"github.com/fundilink/FundiLink/internal/pkg/mpesa"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Wire repositories and the payment service before any handler runs.
	repository.InitializeFactory(database.GetDB())
	controllers.InitializeMpesaController(mpesa.NewServiceFromDB(database.GetDB()))

	h.registerPaymentRoutes(app)
	h.registerInvoiceRoutes(app)
	h.registerManualPaymentRoutes(app)
}

func (h HttpRouter) registerPaymentRoutes(app *fiber.App) {
	auth := middleware.APIKeyAuthMiddleware()

	group := app.Group(constants.MpesaRoute)
	group.Post("/stk-push", auth, controllers.HandleStkPush)
	// The provider posts here; it cannot carry our API key.
	group.Post("/callback", controllers.HandleMpesaCallback)
	group.Get("/transactions", auth, controllers.HandleListMpesaTransactions)
	group.Get("/transactions/:id", auth, controllers.HandleGetMpesaTransaction)
	group.Get("/transaction/status/:checkout_request_id", auth, controllers.HandleMpesaTransactionStatus)
}

func (h HttpRouter) registerInvoiceRoutes(app *fiber.App) {
	auth := middleware.APIKeyAuthMiddleware()

	group := app.Group(constants.InvoicesRoute, auth)
	group.Get("/", controllers.HandleListInvoices)
	group.Get("/:id", controllers.HandleGetInvoice)
	group.Get("/:id/payments", controllers.HandleListInvoicePayments)
}

func (h HttpRouter) registerManualPaymentRoutes(app *fiber.App) {
	auth := middleware.APIKeyAuthMiddleware()

	group := app.Group(constants.PaymentsRoute, auth, middleware.RequireAdmin)
	group.Post("/cash", controllers.HandleRecordCashPayment)
	group.Post("/card", controllers.HandleRecordCardPayment)
	group.Post("/bank-transfer", controllers.HandleRecordBankTransferPayment)
	group.Post("/paybill", controllers.HandleRecordPaybillPayment)
	group.Get("/statistics", controllers.HandlePaymentStatistics)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
