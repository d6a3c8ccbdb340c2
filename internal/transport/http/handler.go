package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/lotto999/lotto-service/internal/model"
	"github.com/lotto999/lotto-service/internal/repo"
	"github.com/lotto999/lotto-service/internal/service"
)

// Services groups the service layer for the router.
type Services struct {
	Auth       *service.AuthService
	Wallet     *service.WalletService
	Sales      *service.SalesService
	Reward     *service.RewardService
	Settlement *service.SettlementService
}

// RegisterHandlers mounts every route on the engine.
func RegisterHandlers(r *gin.Engine, s Services) {
	auth := r.Group("/auth")
	{
		auth.POST("/register", registerHandler(s.Auth))
		auth.POST("/login", loginHandler(s.Auth))
	}
	r.GET("/users/:uid", getUserHandler(s.Auth))

	lottery := r.Group("/lottery")
	{
		lottery.POST("/buy", buyHandler(s.Sales))
		lottery.GET("/my/:uid", myTicketsHandler(s.Sales))
		lottery.GET("/available", availableHandler(s.Sales))
		lottery.POST("/check/:uid", checkHandler(s.Settlement))
		lottery.POST("/claim/:oid", claimHandler(s.Settlement))
		lottery.POST("/claim-all/:uid", claimAllHandler(s.Settlement))
		lottery.GET("/getreward", getRewardHandler(s.Reward))
	}

	wallet := r.Group("/wallet")
	{
		wallet.GET("/:uid", getWalletHandler(s.Wallet))
		wallet.POST("/add", addMoneyHandler(s.Wallet))
		wallet.POST("/withdraw", withdrawHandler(s.Wallet))
		wallet.POST("/create", createWalletHandler(s.Wallet))
		wallet.POST("/:uid/update", updateWalletHandler(s.Wallet))
	}

	admin := r.Group("/admin")
	{
		admin.POST("/lotto", createTicketHandler(s.Sales))
		admin.POST("/random-rewards", randomRewardsHandler(s.Reward))
		admin.POST("/select-reward", selectRewardHandler(s.Reward))
		admin.GET("/showrank", showRankHandler(s.Reward))
	}
}

// respondErr maps service errors to HTTP status codes.
func respondErr(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrWalletNotFound),
		errors.Is(err, service.ErrTicketNotFound),
		errors.Is(err, service.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrWalletExists):
		status = http.StatusConflict
	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrNegativeBalance),
		errors.Is(err, service.ErrInvalidNumber),
		errors.Is(err, service.ErrInvalidSuffix),
		errors.Is(err, service.ErrNoTickets),
		errors.Is(err, service.ErrAlreadyPaid),
		errors.Is(err, service.ErrNotClaimable),
		errors.Is(err, service.ErrRewardNotFound),
		errors.Is(err, service.ErrNoPrize),
		errors.Is(err, repo.ErrInsufficientFunds),
		errors.Is(err, repo.ErrTicketUnavailable):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func paramUint(c *gin.Context, name string) uint64 {
	v, _ := strconv.ParseUint(c.Param(name), 10, 64)
	return v
}

type registerReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Fullname string `json:"fullname" binding:"required"`
	Phone    string `json:"phone"`
	Birthday string `json:"birthday"`
}

func registerHandler(svc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		u := &model.User{
			Email:    req.Email,
			Password: req.Password,
			Fullname: req.Fullname,
			Phone:    req.Phone,
		}
		if req.Birthday != "" {
			bd, err := time.Parse("2006-01-02", req.Birthday)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid birthday, want YYYY-MM-DD"})
				return
			}
			u.Birthday = &bd
		}
		out, err := svc.Register(c, u)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"uid": out.ID, "email": out.Email, "fullname": out.Fullname})
	}
}

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler(svc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		u, err := svc.Login(c, req.Email, req.Password)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"uid": u.ID, "email": u.Email, "fullname": u.Fullname, "role": u.Role})
	}
}

func getUserHandler(svc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := svc.GetUser(c, paramUint(c, "uid"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"uid": u.ID, "email": u.Email, "fullname": u.Fullname, "phone": u.Phone, "role": u.Role})
	}
}

type buyReq struct {
	UID uint64 `json:"uid" binding:"required"`
	LID uint64 `json:"lid" binding:"required"`
}

func buyHandler(svc *service.SalesService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req buyReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		res, err := svc.Buy(c, req.UID, req.LID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func myTicketsHandler(svc *service.SalesService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.MyTickets(c, paramUint(c, "uid"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func availableHandler(svc *service.SalesService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.ListAvailable(c, c.Query("suffix"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func checkHandler(svc *service.SettlementService) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.CheckAndSettle(c, paramUint(c, "uid"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func claimHandler(svc *service.SettlementService) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.Claim(c, paramUint(c, "oid"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func claimAllHandler(svc *service.SettlementService) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.ClaimAll(c, paramUint(c, "uid"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func getRewardHandler(svc *service.RewardService) gin.HandlerFunc {
	return func(c *gin.Context) {
		rs, err := svc.ListRewards(c)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, rs)
	}
}

func getWalletHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, err := svc.Get(c, paramUint(c, "uid"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"wid": w.ID, "uid": w.UserID, "balance": w.Balance, "account_id": w.AccountID})
	}
}

type moneyReq struct {
	UID    uint64 `json:"uid" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

func addMoneyHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req moneyReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		amt, err := decimal.NewFromString(req.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
			return
		}
		bal, err := svc.Deposit(c, req.UID, amt)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"balance": bal})
	}
}

func withdrawHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req moneyReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		amt, err := decimal.NewFromString(req.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
			return
		}
		bal, err := svc.Withdraw(c, req.UID, amt)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"balance": bal})
	}
}

type createWalletReq struct {
	UID uint64 `json:"uid" binding:"required"`
}

func createWalletHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createWalletReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		w, err := svc.CreateIfMissing(c, req.UID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"wid": w.ID, "uid": w.UserID, "balance": w.Balance})
	}
}

type updateWalletReq struct {
	AccountID *string `json:"account_id"`
	Money     *string `json:"money"`
}

func updateWalletHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateWalletReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var bal *decimal.Decimal
		if req.Money != nil {
			d, err := decimal.NewFromString(*req.Money)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid money"})
				return
			}
			bal = &d
		}
		w, err := svc.Update(c, paramUint(c, "uid"), req.AccountID, bal)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"wid": w.ID, "uid": w.UserID, "balance": w.Balance, "account_id": w.AccountID})
	}
}

type createTicketReq struct {
	UID       uint64 `json:"uid"`
	Number    string `json:"number" binding:"required"`
	Price     string `json:"price" binding:"required"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func createTicketHandler(svc *service.SalesService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createTicketReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		price, err := decimal.NewFromString(req.Price)
		if err != nil || price.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price"})
			return
		}
		t := &model.Ticket{UserID: req.UID, Number: req.Number, Price: price}
		if req.StartDate != "" {
			if t.StartDate, err = time.Parse("2006-01-02", req.StartDate); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date"})
				return
			}
		}
		if req.EndDate != "" {
			if t.EndDate, err = time.Parse("2006-01-02", req.EndDate); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date"})
				return
			}
		}
		out, err := svc.CreateTicket(c, t)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, out)
	}
}

func randomRewardsHandler(svc *service.RewardService) gin.HandlerFunc {
	return func(c *gin.Context) {
		rs, err := svc.AssignTopRewards(c)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"assigned": rs})
	}
}

type selectRewardReq struct {
	Number string `json:"number" binding:"required"`
}

func selectRewardHandler(svc *service.RewardService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req selectRewardReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		rs, err := svc.AssignSuffixReward(c, req.Number)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"assigned": rs})
	}
}

func showRankHandler(svc *service.RewardService) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := svc.ShowRank(c)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}
